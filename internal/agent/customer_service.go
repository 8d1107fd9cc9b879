package agent

import (
	"context"
)

// CustomerService is the default entry agent: balance inquiries, transaction
// history, general FAQ. No compliance gating beyond the general policy.
type CustomerService struct {
	base
}

const customerServiceSystemPrompt = `You are a friendly customer service assistant for {bank_name}.
Answer questions about balances, transactions and account services. Do not
disclose account details unless the caller is verified. Keep responses under
60 words; this is a voice channel.`

func (a *CustomerService) Kind() Kind { return KindCustomerService }

func (a *CustomerService) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	if a.isEscalationRequest(input) {
		return &Result{
			Reply:    "I'll transfer you to a human representative right away. Please hold.",
			Escalate: true,
		}, nil
	}

	system := a.renderSystem(customerServiceSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		return &Result{
			Reply:    "I'm experiencing a technical issue. Let me connect you with a representative.",
			Escalate: true,
			Metadata: map[string]string{"fallback": "generation_failure"},
		}, nil
	}

	return &Result{Reply: reply}, nil
}
