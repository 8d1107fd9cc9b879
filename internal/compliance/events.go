package compliance

// EventType enumerates the regulatory occurrences the engine must durably
// record. Events are write-once; the flag types below are additionally
// idempotent per session.
type EventType string

const (
	// EventMiniMiranda - FDCPA first-contact debt collection disclosure.
	EventMiniMiranda EventType = "mini_miranda"
	// EventCeaseAndDesist - caller invoked the right to cease communication.
	EventCeaseAndDesist EventType = "cease_and_desist"
	// EventDebtDispute - caller disputed the debt (written validation owed).
	EventDebtDispute EventType = "debt_dispute"
	// EventFraudHold - a card block or suspicious-activity hold was placed.
	EventFraudHold EventType = "fraud_hold"
	// EventConsentCapture - marketing/recording consent was recorded.
	EventConsentCapture EventType = "consent_capture"
	// EventConsentRevoked - TCPA opt-out from solicitation contact.
	EventConsentRevoked EventType = "consent_revoked"
	// EventHumanHandoff - caller requested a human agent (CFPB).
	EventHumanHandoff EventType = "human_handoff"
	// EventComplaint - a formal complaint was logged for follow-up.
	EventComplaint EventType = "complaint"
)

func (e EventType) String() string { return string(e) }
