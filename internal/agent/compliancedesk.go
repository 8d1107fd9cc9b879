package agent

import (
	"context"
	"strings"

	"github.com/tellerline/tellerline/internal/compliance"
)

// Compliance is the terminal routing target for disputes, complaints and
// regulatory requests. It may end the session but never escalates: it is the
// escalation target.
type Compliance struct {
	base
}

const complianceSystemPrompt = `You are a compliance specialist for {bank_name}, trained on US banking regulations.
Handle complaints with empathy, document everything. For CFPB complaints:
acknowledge, apologize, and ensure human follow-up within 60 days. For GLBA
data privacy requests: acknowledge the right and explain the bank's privacy
policy. Never dismiss a complaint. For formal complaints provide reference
number {session_id}. Keep responses under 60 words; this is a voice channel.`

func (a *Compliance) Kind() Kind { return KindCompliance }

func (a *Compliance) Handle(ctx context.Context, input string, view *SessionView) (*Result, error) {
	var triggers []compliance.EventType
	if a.isComplaint(input) && !view.Flags[compliance.EventComplaint.String()] {
		triggers = append(triggers, compliance.EventComplaint)
	}

	system := a.renderSystem(complianceSystemPrompt, view)
	reply, err := a.generate(ctx, system, view, input)
	if err != nil {
		reply = "I've recorded your concern under reference " + view.SessionID +
			". A compliance officer will follow up with you directly."
	}

	// Escalate stays false by construction: this agent is where escalation
	// lands, not where it starts.
	return &Result{
		Reply:    reply,
		Triggers: triggers,
		Metadata: map[string]string{"ref": view.SessionID},
	}, nil
}

func (a *Compliance) isComplaint(input string) bool {
	lower := strings.ToLower(input)
	for _, w := range []string{"complaint", "complain", "cfpb", "report you", "file a"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
