package agent

import (
	"context"

	"github.com/tellerline/tellerline/internal/compliance"
)

// Sales handles product inquiries and cross-sell under TCPA constraints:
// solicitation requires a recorded consent flag on the session, and an
// opt-out revokes it immediately.
type Sales struct {
	base
}

const salesSystemPrompt = `You are a consultative banking sales assistant for {bank_name}.
Be helpful, not pushy. Focus on one product per call. If the customer shows
interest, offer to transfer to a human banker to complete the application.
Keep responses under 60 words; this is a voice channel.`

func (a *Sales) Kind() Kind { return KindSales }

func (a *Sales) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	if compliance.MatchesAny(input, a.policy.OptOutPhrases) {
		return &Result{
			Reply: "Absolutely, I'll remove you from our outreach list right away. We apologize for any inconvenience. " +
				"Is there anything else I can help you with today?",
			Triggers:  []compliance.EventType{compliance.EventConsentRevoked},
			NextAgent: KindCustomerService,
			Metadata:  map[string]string{"action": "tcpa_opt_out"},
		}, nil
	}

	// No solicitation without prior express consent.
	if !view.Consent {
		return &Result{
			Reply: "I'm not able to share product offers without your consent on file, but I'm happy to help with your account. " +
				"What can I do for you today?",
			NextAgent: KindCustomerService,
			Metadata:  map[string]string{"action": "consent_missing"},
		}, nil
	}

	if a.isEscalationRequest(input) {
		return &Result{
			Reply:    "I'll connect you with one of our personal bankers who can walk you through everything. Please hold.",
			Escalate: true,
		}, nil
	}

	system := a.renderSystem(salesSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		return &Result{
			Reply:     "Let me connect you with one of our bankers who can better assist you.",
			NextAgent: KindCustomerService,
			Metadata:  map[string]string{"fallback": "generation_failure"},
		}, nil
	}

	return &Result{Reply: reply}, nil
}
