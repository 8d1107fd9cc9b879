package router

import (
	"context"
	"strings"

	"github.com/tellerline/tellerline/internal/agent"
)

// KeywordStrategy scores each agent's signature phrase set against the
// utterance. Confidence is the winning score over the total hits, so an
// utterance that matches a single domain scores 1.0 and ambiguous text scores
// low. Ties break toward the current agent to keep conversations coherent.
type KeywordStrategy struct {
	signatures map[agent.Kind][]string
}

func NewKeywordStrategy() *KeywordStrategy {
	return &KeywordStrategy{signatures: defaultSignatures()}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

func (s *KeywordStrategy) Classify(_ context.Context, text string, current agent.Kind) (agent.Kind, float64, error) {
	lower := strings.ToLower(text)

	scores := make(map[agent.Kind]int, len(s.signatures))
	total := 0
	for kind, phrases := range s.signatures {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				scores[kind]++
				total++
			}
		}
	}

	if total == 0 {
		if current != "" {
			return current, 0, nil
		}
		return agent.KindCustomerService, 0, nil
	}

	best := agent.KindCustomerService
	bestScore := -1
	for _, kind := range agent.Kinds() {
		score := scores[kind]
		if score > bestScore {
			best = kind
			bestScore = score
		} else if score == bestScore && kind == current {
			best = kind
		}
	}

	return best, float64(bestScore) / float64(total), nil
}

// defaultSignatures covers the intent surface of a bank contact center:
// balance/transaction FAQ, debt servicing, fraud, product sales, account
// opening, and complaints/privacy.
func defaultSignatures() map[agent.Kind][]string {
	return map[agent.Kind][]string{
		agent.KindCustomerService: {
			"balance", "transaction", "statement", "transfer", "deposit",
			"routing number", "branch", "hours", "atm", "direct deposit",
			"my account", "password", "locked out",
		},
		agent.KindCollections: {
			"payment", "owe", "debt", "loan", "past due", "overdue",
			"payment plan", "installment", "bill", "collection", "minimum due",
		},
		agent.KindFraud: {
			"fraud", "stolen", "lost my card", "lost card", "unauthorized",
			"suspicious", "scam", "didn't make", "did not make", "hacked",
			"compromised", "phishing",
		},
		agent.KindSales: {
			"credit card", "interest rate", "offer", "product", "mortgage",
			"rewards", "upgrade", "cd rates", "savings rate", "apply for",
		},
		agent.KindOnboarding: {
			"open an account", "new account", "open a checking",
			"open a savings", "sign up", "become a customer", "enroll",
			"get started",
		},
		agent.KindCompliance: {
			"complaint", "complain", "cfpb", "privacy", "my data",
			"kyc", "regulator", "report you", "attorney", "legal",
		},
	}
}
