package agent

import (
	"context"

	"github.com/tellerline/tellerline/internal/compliance"
)

// Fraud handles suspicious-activity reports and card blocks. Every hold it
// places escalates the session and records a fraud_hold event; it never ends
// the session itself, closure requires the compliance side.
type Fraud struct {
	base
}

const fraudSystemPrompt = `You are a fraud prevention specialist for {bank_name}.
Treat every fraud report as urgent. Never ask for full card numbers, PINs or passwords.
Be calm, reassuring and efficient. Keep responses under 60 words; this is a voice channel.`

func (a *Fraud) Kind() Kind { return KindFraud }

func (a *Fraud) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	if compliance.MatchesAny(input, a.policy.CardBlockPhrases) {
		return &Result{
			Reply: "I'm blocking your card immediately for your protection. A replacement card will arrive in 5 to 7 business days. " +
				"Can you confirm the last four digits of the affected card?",
			Escalate: true,
			Triggers: []compliance.EventType{compliance.EventFraudHold},
			Metadata: map[string]string{"action": "card_block_initiated"},
		}, nil
	}

	if compliance.MatchesAny(input, a.policy.ActiveFraudPhrases) {
		return &Result{
			Reply: "I understand there are unauthorized charges on your account. I'm connecting you with our fraud specialist immediately. " +
				"They have the authority to reverse charges and secure your account.",
			Escalate: true,
			Triggers: []compliance.EventType{compliance.EventFraudHold},
			Metadata: map[string]string{"fraud_type": "unauthorized_charges"},
		}, nil
	}

	if a.isEscalationRequest(input) {
		return &Result{
			Reply:    "Connecting you with our fraud team now. Please stay on the line.",
			Escalate: true,
		}, nil
	}

	system := a.renderSystem(fraudSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		return &Result{
			Reply:    "I'm connecting you directly to our fraud prevention team.",
			Escalate: true,
			Metadata: map[string]string{"fallback": "generation_failure"},
		}, nil
	}

	return &Result{Reply: reply}, nil
}
