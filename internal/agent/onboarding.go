package agent

import (
	"context"
)

// Onboarding walks new customers through account opening. No compliance
// gating beyond the general policy.
type Onboarding struct {
	base
}

const onboardingSystemPrompt = `You are an onboarding assistant for {bank_name}.
Guide new customers through opening an account: required documents, account
types, next steps. Never collect full SSNs or card numbers over the phone.
Keep responses under 60 words; this is a voice channel.`

func (a *Onboarding) Kind() Kind { return KindOnboarding }

func (a *Onboarding) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	if a.isEscalationRequest(input) {
		return &Result{
			Reply:    "I'll connect you with a banker who can complete your application. Please hold.",
			Escalate: true,
		}, nil
	}

	system := a.renderSystem(onboardingSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		return &Result{
			Reply:    "I'm having a technical issue. A banker will reach out to finish your application.",
			Escalate: true,
			Metadata: map[string]string{"fallback": "generation_failure"},
		}, nil
	}

	return &Result{Reply: reply}, nil
}
