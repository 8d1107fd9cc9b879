package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/concurrency"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/logger"
	"github.com/tellerline/tellerline/internal/model/contract"
	"github.com/tellerline/tellerline/internal/store"
)

// Manager owns session lifecycle and per-session serialization. Turns for one
// session run strictly one at a time; distinct sessions run in parallel.
type Manager struct {
	store        *store.Store
	locks        *concurrency.SessionLockManager
	bankName     string
	historyLimit int
}

func NewManager(st *store.Store, locks *concurrency.SessionLockManager, bankName string, historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = 15
	}
	return &Manager{store: st, locks: locks, bankName: bankName, historyLimit: historyLimit}
}

// GetOrCreate returns the session, creating it on first contact. Concurrent
// first contacts for the same ID create exactly one row; the insert is
// an INSERT OR IGNORE and every caller reads back the winning row.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, channel, caller, bankID string) (*store.SessionRecord, error) {
	if sessionID == "" {
		return nil, tlerrors.InvalidInput("session id required")
	}
	rec, err := m.store.GetSession(ctx, sessionID)
	if err == nil {
		return rec, nil
	}
	if !tlerrors.IsCategory(err, tlerrors.ErrUnknownSession) {
		return nil, err
	}

	created, err := m.store.CreateSession(ctx, store.SessionRecord{
		SessionID:    sessionID,
		Caller:       caller,
		Channel:      channel,
		BankID:       bankID,
		CurrentAgent: string(agent.KindCustomerService),
		Status:       store.StatusActive,
		StartedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Session created",
		"session_id", sessionID, "channel", channel, "trace_id", logger.GetTraceID(ctx))
	return created, nil
}

// Get returns the session or ErrUnknownSession.
func (m *Manager) Get(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	return m.store.GetSession(ctx, sessionID)
}

// WithSession runs fn holding the session's exclusive lock.
func (m *Manager) WithSession(sessionID string, fn func() error) error {
	m.locks.Lock(sessionID)
	defer m.locks.Unlock(sessionID)
	return fn()
}

// End finalizes a session. Ending an already-ended session is a no-op, so
// transport-level retries of the end call are harmless.
func (m *Manager) End(ctx context.Context, sessionID, reason string) error {
	return m.WithSession(sessionID, func() error {
		rec, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if rec.Status == store.StatusEnded {
			return nil
		}
		if err := ValidateTransition(rec.Status, store.StatusEnded); err != nil {
			return err
		}

		now := time.Now().UTC()
		update := store.SessionUpdate{
			CurrentAgent:    rec.CurrentAgent,
			Status:          store.StatusEnded,
			Escalated:       rec.Escalated,
			Consent:         rec.Consent,
			EndedAt:         &now,
			DurationSeconds: int64(now.Sub(rec.StartedAt).Seconds()),
			EndReason:       reason,
		}
		if err := m.store.UpdateSession(ctx, sessionID, update); err != nil {
			return err
		}
		slog.Info("Session ended",
			"session_id", sessionID, "reason", reason,
			"duration_seconds", update.DurationSeconds, "trace_id", logger.GetTraceID(ctx))
		return nil
	})
}

// Forget releases lock bookkeeping for an ended session.
func (m *Manager) Forget(sessionID string) {
	m.locks.Forget(sessionID)
}

// Snapshot assembles the read-only view an agent gets for one turn: session
// state, recorded compliance flags, and the recent transcript window.
func (m *Manager) Snapshot(ctx context.Context, rec *store.SessionRecord) (*agent.SessionView, error) {
	flags, err := m.store.EventTypes(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	turnCount, err := m.store.TurnCount(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	turns, err := m.store.RecentTurns(ctx, rec.SessionID, m.historyLimit)
	if err != nil {
		return nil, err
	}

	history := make([]contract.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, contract.Message{Role: t.Role, Content: t.Content})
	}

	return &agent.SessionView{
		SessionID: rec.SessionID,
		BankName:  m.bankName,
		Status:    rec.Status,
		Escalated: rec.Escalated,
		Consent:   rec.Consent,
		TurnCount: turnCount,
		Flags:     flags,
		History:   history,
	}, nil
}
