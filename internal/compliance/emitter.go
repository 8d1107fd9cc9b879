package compliance

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tellerline/tellerline/internal/store"
)

// Emitter validates and stages compliance events for a turn. Events are
// appended into the turn's unit of work and become durable together with the
// turn record; a failed commit surfaces as ComplianceWriteFailure upstream.
type Emitter struct {
	policy *Policy
	redact []*regexp.Regexp
}

func NewEmitter(policy *Policy, extraRedactPatterns []string) *Emitter {
	e := &Emitter{policy: policy}
	for _, pat := range append(append([]string{}, policy.RedactPatterns...), extraRedactPatterns...) {
		re, err := regexp.Compile(pat)
		if err != nil {
			slog.Warn("Invalid redact pattern, skipping", "pattern", pat, "error", err)
			continue
		}
		e.redact = append(e.redact, re)
	}
	return e
}

// Record stages events onto the commit. Idempotent flag types already present
// in the session (or earlier in this commit) are dropped silently so a repeat
// trigger never produces a duplicate row. Returns the event types actually
// staged.
func (e *Emitter) Record(commit *store.TurnCommit, turnNumber int, events []EventType, details map[string]string, existing map[string]bool) []EventType {
	staged := make(map[EventType]bool)
	for _, ev := range commit.Events {
		staged[EventType(ev.Type)] = true
	}

	var recorded []EventType
	now := time.Now()
	for _, ev := range events {
		if e.policy.IdempotentTypes[ev] && (existing[string(ev)] || staged[ev]) {
			slog.Debug("Idempotent compliance event already recorded, skipping",
				"session_id", commit.SessionID, "event_type", ev)
			continue
		}
		commit.Events = append(commit.Events, store.EventRecord{
			ID:         ulid.Make().String(),
			SessionID:  commit.SessionID,
			TurnNumber: turnNumber,
			Type:       string(ev),
			Details:    e.redactDetails(details),
			CreatedAt:  now,
		})
		staged[ev] = true
		recorded = append(recorded, ev)
	}
	return recorded
}

func (e *Emitter) redactDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		for _, re := range e.redact {
			v = re.ReplaceAllString(v, "[REDACTED]")
		}
		out[k] = v
	}
	return out
}
