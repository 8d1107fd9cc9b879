package agent

import (
	"context"

	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/model/contract"
)

// Kind identifies one of the closed set of specialist agents.
type Kind string

const (
	KindCustomerService Kind = "customer_service"
	KindCollections     Kind = "collections"
	KindFraud           Kind = "fraud_detection"
	KindSales           Kind = "sales"
	KindOnboarding      Kind = "onboarding"
	KindCompliance      Kind = "compliance"
)

// Kinds lists every dispatchable agent kind.
func Kinds() []Kind {
	return []Kind{
		KindCustomerService, KindCollections, KindFraud,
		KindSales, KindOnboarding, KindCompliance,
	}
}

// ParseKind normalizes a stored agent name; unknown names fall back to
// customer service, the default entry agent.
func ParseKind(name string) Kind {
	switch Kind(name) {
	case KindCustomerService, KindCollections, KindFraud, KindSales, KindOnboarding, KindCompliance:
		return Kind(name)
	default:
		return KindCustomerService
	}
}

// SessionView is the read-only session snapshot an agent sees for one turn.
type SessionView struct {
	SessionID string
	BankName  string
	Status    string
	Escalated bool
	Consent   bool
	TurnCount int
	// Flags holds compliance event types already recorded for the session.
	Flags map[string]bool
	// History is the recent transcript window, oldest first.
	History []contract.Message
}

// Result is an agent's decision for one turn.
type Result struct {
	Reply      string
	Escalate   bool
	EndSession bool
	Triggers   []compliance.EventType
	// NextAgent overrides routing for the following turn; empty means none.
	NextAgent Kind
	Metadata  map[string]string
}

// Agent handles one conversational turn for its specialty.
type Agent interface {
	Kind() Kind
	Handle(ctx context.Context, input string, view *SessionView) (*Result, error)
}

// Generator is the language-generation capability agents depend on. The
// implementation retries once on failure; a returned error means the caller
// should fall back to its canned safe reply.
type Generator interface {
	Complete(ctx context.Context, system string, messages []contract.Message) (string, error)
}
