package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/config"
)

func newTestRouter() *Router {
	return New(NewKeywordStrategy(), compliance.DefaultPolicy(), config.RoutingConfig{
		Strategy:      "keyword",
		MinConfidence: 0.25,
	})
}

func TestKeywordStrategy_ClassifiesDomains(t *testing.T) {
	s := NewKeywordStrategy()
	ctx := context.Background()

	cases := []struct {
		input string
		want  agent.Kind
	}{
		{"what is my checking balance", agent.KindCustomerService},
		{"I need to set up a payment plan for my loan", agent.KindCollections},
		{"there are unauthorized charges, I think it's fraud", agent.KindFraud},
		{"tell me about your credit card rewards", agent.KindSales},
		{"I'd like to open an account and get started", agent.KindOnboarding},
		{"I want to file a complaint with the CFPB", agent.KindCompliance},
	}
	for _, tc := range cases {
		kind, confidence, err := s.Classify(ctx, tc.input, "")
		require.NoError(t, err)
		assert.Equal(t, tc.want, kind, "input: %s", tc.input)
		assert.Greater(t, confidence, 0.0, "input: %s", tc.input)
	}
}

func TestKeywordStrategy_NoSignalStaysWithCurrentAgent(t *testing.T) {
	s := NewKeywordStrategy()

	kind, confidence, err := s.Classify(context.Background(), "okay thanks", agent.KindCollections)
	require.NoError(t, err)
	assert.Equal(t, agent.KindCollections, kind)
	assert.Zero(t, confidence)
}

func TestKeywordStrategy_NoSignalFirstTurnDefaultsToCustomerService(t *testing.T) {
	s := NewKeywordStrategy()

	kind, _, err := s.Classify(context.Background(), "hello there", "")
	require.NoError(t, err)
	assert.Equal(t, agent.KindCustomerService, kind)
}

func TestKeywordStrategy_TieBreaksToCurrentAgent(t *testing.T) {
	s := NewKeywordStrategy()

	// "payment" hits collections, "balance" hits customer service.
	kind, _, err := s.Classify(context.Background(), "a payment toward my balance", agent.KindCollections)
	require.NoError(t, err)
	assert.Equal(t, agent.KindCollections, kind)
}

func TestRouter_EscalatedSessionPinsCompliance(t *testing.T) {
	r := newTestRouter()

	got := r.Resolve(context.Background(), "what is my balance", agent.KindSales, true)
	assert.Equal(t, agent.KindCompliance, got)
}

func TestRouter_StickyAgentHoldsSession(t *testing.T) {
	r := newTestRouter()

	// Fraud is sticky: even a sales-looking utterance stays with fraud.
	got := r.Resolve(context.Background(), "tell me about your credit card offers", agent.KindFraud, false)
	assert.Equal(t, agent.KindFraud, got)
}

func TestRouter_LowConfidenceKeepsCurrentAgent(t *testing.T) {
	r := newTestRouter()

	got := r.Resolve(context.Background(), "hm alright", agent.KindOnboarding, false)
	assert.Equal(t, agent.KindOnboarding, got)
}

func TestRouter_RoutesOnClearSignal(t *testing.T) {
	r := newTestRouter()

	got := r.Resolve(context.Background(), "someone stole my card, this is fraud", agent.KindCustomerService, false)
	assert.Equal(t, agent.KindFraud, got)
}
