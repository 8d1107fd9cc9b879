package router

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/tellerline/tellerline/internal/agent"
)

const intentCollection = "intent_exemplars"

// Embedder produces an embedding for a text through the model layer.
// model.DefaultRouter satisfies this.
type Embedder interface {
	RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error)
}

// VectorStrategy classifies by nearest-neighbour lookup over a small seeded
// set of intent exemplars. Embeddings are produced through the model layer,
// so chromem only stores and searches vectors.
type VectorStrategy struct {
	db       *chromem.DB
	embedder Embedder
	model    string
}

type exemplar struct {
	kind agent.Kind
	text string
}

func NewVectorStrategy(ctx context.Context, embedder Embedder, embeddingModel string) (*VectorStrategy, error) {
	s := &VectorStrategy{
		db:       chromem.NewDB(),
		embedder: embedder,
		model:    embeddingModel,
	}

	// Embedding func stays nil: vectors are provided manually.
	col, err := s.db.GetOrCreateCollection(intentCollection, nil, nil)
	if err != nil {
		return nil, err
	}

	for i, ex := range intentExemplars() {
		vec, err := embedder.RouteEmbedding(ctx, embeddingModel, ex.text)
		if err != nil {
			return nil, fmt.Errorf("seed exemplar %q: %w", ex.text, err)
		}
		err = col.AddDocuments(ctx, []chromem.Document{{
			ID:        fmt.Sprintf("ex-%03d", i),
			Metadata:  map[string]string{"agent": string(ex.kind)},
			Embedding: vec,
			Content:   ex.text,
		}}, 1)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *VectorStrategy) Name() string { return "vector" }

func (s *VectorStrategy) Classify(ctx context.Context, text string, current agent.Kind) (agent.Kind, float64, error) {
	vec, err := s.embedder.RouteEmbedding(ctx, s.model, text)
	if err != nil {
		return current, 0, err
	}

	col := s.db.GetCollection(intentCollection, nil)
	if col == nil {
		return current, 0, fmt.Errorf("intent collection missing")
	}

	docs, err := col.QueryEmbedding(ctx, vec, 3, nil, nil)
	if err != nil {
		return current, 0, err
	}
	if len(docs) == 0 {
		return current, 0, nil
	}

	// Similarity-weighted vote over the neighbours; confidence is the
	// winner's share of the vote mass.
	votes := make(map[agent.Kind]float64, len(docs))
	var total float64
	for _, doc := range docs {
		if doc.Similarity <= 0 {
			continue
		}
		kind := agent.ParseKind(doc.Metadata["agent"])
		votes[kind] += float64(doc.Similarity)
		total += float64(doc.Similarity)
	}
	if total == 0 {
		return current, 0, nil
	}

	best := current
	var bestVote float64
	for _, kind := range agent.Kinds() {
		if votes[kind] > bestVote {
			best = kind
			bestVote = votes[kind]
		}
	}
	return best, bestVote / total, nil
}

func intentExemplars() []exemplar {
	return []exemplar{
		{agent.KindCustomerService, "what is my checking account balance"},
		{agent.KindCustomerService, "show me my recent transactions"},
		{agent.KindCustomerService, "what are your branch hours"},
		{agent.KindCollections, "I got a reminder about my loan payment"},
		{agent.KindCollections, "can I set up a payment plan for my debt"},
		{agent.KindCollections, "how much do I still owe on my loan"},
		{agent.KindSales, "tell me about your credit card offers"},
		{agent.KindSales, "what are your mortgage rates"},
		{agent.KindOnboarding, "I want to open a new account"},
		{agent.KindOnboarding, "how do I become a customer"},
		{agent.KindFraud, "there are charges on my card I didn't make"},
		{agent.KindFraud, "I lost my card and need it blocked"},
		{agent.KindFraud, "I think my account was hacked"},
		{agent.KindCompliance, "I want to file a complaint"},
		{agent.KindCompliance, "I have a question about my data privacy"},
		{agent.KindCompliance, "I need to update my identity documents"},
	}
}
