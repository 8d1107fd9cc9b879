package compliance

import "strings"

// Policy is the immutable rule set mapping agent and session state to
// required compliance behavior. It is loaded once at startup and passed
// explicitly to the router, agents and emitter so tests can substitute
// alternate policies. Phrase sets are deliberately explicit data, not
// inference: changing them is a product/legal decision.
type Policy struct {
	// Agents that own a session once engaged, until it ends.
	StickyAgents map[string]bool

	// Event types for which a second Record is a no-op, not a second row.
	IdempotentTypes map[EventType]bool

	// Trigger phrase sets, matched case-insensitively as substrings.
	CeasePhrases       []string
	DisputePhrases     []string
	CardBlockPhrases   []string
	ActiveFraudPhrases []string
	OptOutPhrases      []string
	EscalationPhrases  []string
	NegativeWords      []string

	// Disclosure templates; {bank_name} is substituted at render time.
	CallStartDisclosure string
	MiniMiranda         string
	MarketingDisclosure string

	// Regex patterns redacted from compliance event details before storage.
	RedactPatterns []string
}

// DefaultPolicy returns the shipped rule set.
func DefaultPolicy() *Policy {
	return &Policy{
		StickyAgents: map[string]bool{
			"compliance":      true,
			"fraud_detection": true,
		},
		IdempotentTypes: map[EventType]bool{
			EventCeaseAndDesist: true,
			EventDebtDispute:    true,
			EventConsentRevoked: true,
			EventMiniMiranda:    true,
		},
		CeasePhrases: []string{
			"stop calling", "cease", "do not contact", "don't contact", "stop contacting",
		},
		DisputePhrases: []string{
			"i dispute", "not my debt", "wrong amount", "don't owe", "do not owe",
		},
		CardBlockPhrases: []string{
			"block my card", "cancel my card", "lost my card", "card lost",
			"stolen card", "card stolen", "my card was stolen", "my card is stolen",
			"someone stole my card",
		},
		ActiveFraudPhrases: []string{
			"unauthorized", "didn't make", "didn't authorize", "fraud charge",
			"fraudulent", "someone used",
		},
		OptOutPhrases: []string{
			"not interested", "remove me", "stop calling", "opt out", "don't call",
		},
		EscalationPhrases: []string{
			"human", "agent", "representative", "supervisor", "manager",
			"real person", "talk to someone", "speak to someone", "transfer me",
			"operator", "live agent", "press 0",
		},
		NegativeWords: []string{
			"angry", "furious", "terrible", "ridiculous", "lawsuit", "attorney",
			"lawyer", "complaint", "unacceptable", "incompetent", "useless",
			"disgusting", "scam", "stealing",
		},
		CallStartDisclosure: "This call may be recorded for quality and compliance purposes. " +
			"You are speaking with an AI assistant from {bank_name}. " +
			"You may request a human agent at any time by saying 'agent' or pressing zero.",
		MiniMiranda: "This is an attempt to collect a debt. " +
			"Any information obtained will be used for that purpose. " +
			"This communication is from {bank_name}, a debt collector.",
		MarketingDisclosure: "The following is a marketing message from {bank_name}. " +
			"You may opt out at any time by saying 'stop' or pressing nine.",
		RedactPatterns: []string{
			`\b\d{3}-\d{2}-\d{4}\b`,        // SSN
			`\b(?:\d[ -]*?){13,16}\b`,      // card PAN
		},
	}
}

// RenderDisclosure substitutes the bank name into a disclosure template.
func RenderDisclosure(template, bankName string) string {
	return strings.ReplaceAll(template, "{bank_name}", bankName)
}

// MatchesAny reports whether text contains any of the phrases,
// case-insensitively.
func MatchesAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// CountMatches counts how many of the words appear in text.
func CountMatches(text string, words []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count
}

// Sentiment buckets a caller turn by the rule-based negative-word score.
func (p *Policy) Sentiment(text string) string {
	switch n := CountMatches(text, p.NegativeWords); {
	case n >= 2:
		return "very_negative"
	case n == 1:
		return "negative"
	default:
		return "neutral"
	}
}

// IsEscalationRequest reports whether the caller asked for a human agent.
func (p *Policy) IsEscalationRequest(text string) bool {
	return MatchesAny(text, p.EscalationPhrases)
}

// IsSticky reports whether an agent retains routing control once engaged.
func (p *Policy) IsSticky(agentName string) bool {
	return p.StickyAgents[agentName]
}
