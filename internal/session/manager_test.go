package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/concurrency"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewManager(st, concurrency.NewSessionLockManager(), "First National", 5), st
}

func TestManager_GetOrCreateIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "sess-1", "voice", "+15550100", "default")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, first.Status)
	assert.Equal(t, "customer_service", first.CurrentAgent)

	second, err := m.GetOrCreate(ctx, "sess-1", "chat", "+19990000000", "other")
	require.NoError(t, err)
	assert.Equal(t, first.Caller, second.Caller)
	assert.Equal(t, first.Channel, second.Channel)
}

func TestManager_GetOrCreateRequiresID(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.GetOrCreate(context.Background(), "", "voice", "caller", "default")
	assert.ErrorIs(t, err, tlerrors.ErrInvalidInput)
}

func TestManager_ConcurrentFirstContactCreatesOneSession(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.GetOrCreate(ctx, "sess-race", "voice", "+15550100", "default")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	rec, err := st.GetSession(ctx, "sess-race")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, rec.Status)
}

func TestManager_EndComputesDurationAndIsIdempotent(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, "sess-1", "voice", "+15550100", "default")
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, "sess-1", "caller_hangup"))

	rec, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusEnded, rec.Status)
	assert.Equal(t, "caller_hangup", rec.EndReason)
	require.NotNil(t, rec.EndedAt)

	// Ending twice is a no-op, not an error; the first reason sticks.
	require.NoError(t, m.End(ctx, "sess-1", "other_reason"))
	again, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "caller_hangup", again.EndReason)
}

func TestManager_EndUnknownSession(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.End(context.Background(), "missing", "reason")
	assert.ErrorIs(t, err, tlerrors.ErrUnknownSession)
}

func TestManager_WithSessionSerializesPerSession(t *testing.T) {
	m, _ := newTestManager(t)

	var inCritical, maxInCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithSession("sess-1", func() error {
				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical)
}

func TestManager_SnapshotCarriesFlagsAndHistory(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	rec, err := m.GetOrCreate(ctx, "sess-1", "voice", "+15550100", "default")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, st.CommitTurn(ctx, store.TurnCommit{
		SessionID: "sess-1",
		Turns: []store.TurnRecord{
			{SessionID: "sess-1", TurnNumber: 1, Role: "user", Content: "I owe money", AgentName: "collections", CreatedAt: now},
			{SessionID: "sess-1", TurnNumber: 2, Role: "assistant", Content: "disclosure first", AgentName: "collections", CreatedAt: now},
		},
		Events: []store.EventRecord{
			{ID: "ev-1", SessionID: "sess-1", TurnNumber: 2, Type: "mini_miranda", CreatedAt: now},
		},
	}))

	view, err := m.Snapshot(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, "First National", view.BankName)
	assert.Equal(t, 2, view.TurnCount)
	assert.True(t, view.Flags["mini_miranda"])
	require.Len(t, view.History, 2)
	assert.Equal(t, "user", view.History[0].Role)
	assert.Equal(t, "I owe money", view.History[0].Content)
}
