package transcript

import (
	"time"

	"github.com/tellerline/tellerline/internal/store"
)

// Roles of transcript rows. They double as chat roles for the model layer.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Builder stages the turn rows of one processed turn into a TurnCommit.
// Numbering continues gap-free from the session's last committed turn; the
// numbers only become durable when the commit lands, so an aborted turn
// leaves no hole.
type Builder struct {
	commit store.TurnCommit
	next   int
}

// NewBuilder starts a commit for a session whose highest committed turn
// number is lastTurn (0 for a fresh session).
func NewBuilder(sessionID string, lastTurn int) *Builder {
	return &Builder{
		commit: store.TurnCommit{SessionID: sessionID},
		next:   lastTurn + 1,
	}
}

// Append stages one transcript row and returns its turn number.
func (b *Builder) Append(role, content, agentName string, metadata map[string]string) int {
	n := b.next
	b.next++
	b.commit.Turns = append(b.commit.Turns, store.TurnRecord{
		SessionID:  b.commit.SessionID,
		TurnNumber: n,
		Role:       role,
		Content:    content,
		AgentName:  agentName,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	})
	return n
}

// NextNumber is the number the next appended row will get.
func (b *Builder) NextNumber() int { return b.next }

// SetUpdate attaches the post-turn session mutation.
func (b *Builder) SetUpdate(u *store.SessionUpdate) { b.commit.Update = u }

// Commit exposes the staged unit of work for event recording and the store
// write.
func (b *Builder) Commit() *store.TurnCommit { return &b.commit }
