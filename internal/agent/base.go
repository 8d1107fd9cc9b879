package agent

import (
	"context"
	"strings"

	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/model/contract"
)

// base bundles the collaborators shared by every agent variant.
type base struct {
	gen      Generator
	policy   *compliance.Policy
	bankName string
}

// generate builds the chat window (recent history plus the caller turn) and
// asks the generation capability for a reply.
func (b *base) generate(ctx context.Context, system string, view *SessionView, input string) (string, error) {
	messages := make([]contract.Message, 0, len(view.History)+1)
	messages = append(messages, view.History...)
	messages = append(messages, contract.Message{Role: "user", Content: input})
	return b.gen.Complete(ctx, system, messages)
}

// renderSystem substitutes the bank name and session context into a prompt
// template.
func (b *base) renderSystem(template string, view *SessionView) string {
	out := strings.ReplaceAll(template, "{bank_name}", b.bankName)
	out = strings.ReplaceAll(out, "{session_id}", view.SessionID)
	return out
}

func (b *base) isEscalationRequest(input string) bool {
	return b.policy.IsEscalationRequest(input)
}
