package agent

import (
	"context"

	"github.com/tellerline/tellerline/internal/compliance"
)

// Collections handles payment reminders, payment plans and loan inquiries
// under FDCPA constraints: the mini-Miranda disclosure must precede any
// payment-related reply, and cease/dispute invocations suppress further
// collection language and hand the session to the compliance agent.
type Collections struct {
	base
}

const collectionsSystemPrompt = `You are a compliant debt collection assistant for {bank_name}.
Never threaten illegal actions. Never discuss the debt with third parties.
Offer payment options: full payment, payment plan, hardship program.
Keep responses under 60 words; this is a voice channel.`

func (a *Collections) Kind() Kind { return KindCollections }

func (a *Collections) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	var triggers []compliance.EventType
	cease := compliance.MatchesAny(input, a.policy.CeasePhrases)
	dispute := compliance.MatchesAny(input, a.policy.DisputePhrases)
	if cease {
		triggers = append(triggers, compliance.EventCeaseAndDesist)
	}
	if dispute {
		triggers = append(triggers, compliance.EventDebtDispute)
	}

	// A cease or dispute invocation ends all collection activity: the reply
	// is a fixed acknowledgment and the session is pinned to compliance.
	if len(triggers) > 0 {
		reply := "We will honor your request to cease communication. A written notice will be sent to confirm."
		if dispute {
			reply = "I understand you're disputing this debt. I've noted your dispute; a specialist will provide written debt validation."
		}
		return &Result{
			Reply:     reply,
			Triggers:  triggers,
			NextAgent: KindCompliance,
			Metadata:  map[string]string{"compliance_action": "fdcpa_invocation"},
		}, nil
	}

	if a.isEscalationRequest(input) {
		return &Result{
			Reply:    "I'll connect you with a human representative now. Please hold.",
			Escalate: true,
		}, nil
	}

	system := a.renderSystem(collectionsSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		// Reply failure must not corrupt the audit trail: log a safe canned
		// response and close out cleanly.
		return &Result{
			Reply:      "I'm having a technical issue. A collections specialist will call you back within one business day.",
			EndSession: true,
			Metadata:   map[string]string{"fallback": "generation_failure"},
		}, nil
	}

	result := &Result{Reply: reply}

	// FDCPA first-contact disclosure: no payment-related reply may be logged
	// before a mini_miranda event exists for the session. Prepending the
	// disclosure and recording the event in the same turn commit keeps the
	// invariant by construction.
	if !view.Flags[compliance.EventMiniMiranda.String()] {
		result.Reply = compliance.RenderDisclosure(a.policy.MiniMiranda, a.bankName) + " " + result.Reply
		result.Triggers = append(result.Triggers, compliance.EventMiniMiranda)
	}

	return result, nil
}
