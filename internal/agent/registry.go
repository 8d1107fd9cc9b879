package agent

import (
	"github.com/tellerline/tellerline/internal/compliance"
)

// Registry is the explicit lookup table from agent kind to implementation.
// The set is closed: there is no reflective or dynamic registration.
type Registry struct {
	agents map[Kind]Agent
}

func NewRegistry(gen Generator, policy *compliance.Policy, bankName string) *Registry {
	base := base{gen: gen, policy: policy, bankName: bankName}
	return &Registry{
		agents: map[Kind]Agent{
			KindCustomerService: &CustomerService{base: base},
			KindCollections:     &Collections{base: base},
			KindFraud:           &Fraud{base: base},
			KindSales:           &Sales{base: base},
			KindOnboarding:      &Onboarding{base: base},
			KindCompliance:      &Compliance{base: base},
		},
	}
}

// Get returns the agent for a kind, falling back to customer service for
// anything unknown.
func (r *Registry) Get(kind Kind) Agent {
	if a, ok := r.agents[kind]; ok {
		return a
	}
	return r.agents[KindCustomerService]
}
