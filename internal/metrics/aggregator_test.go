package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewAggregator(st), st
}

func endSession(t *testing.T, st *store.Store, id, agentName, day string, duration int64, escalated bool) {
	t.Helper()
	ctx := context.Background()
	_, err := st.CreateSession(ctx, store.SessionRecord{
		SessionID: id, Caller: "+15550100", Channel: "voice", BankID: "default",
		CurrentAgent: agentName, Status: store.StatusActive, StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	endedAt, err := time.Parse(time.RFC3339, day+"T09:00:00Z")
	require.NoError(t, err)
	require.NoError(t, st.UpdateSession(ctx, id, store.SessionUpdate{
		CurrentAgent: agentName, Status: store.StatusEnded, Escalated: escalated,
		EndedAt: &endedAt, DurationSeconds: duration, EndReason: "caller_hangup",
	}))
}

func TestAggregator_FoldsEndedSessions(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	endSession(t, st, "a", "collections", "2026-08-26", 120, false)
	endSession(t, st, "b", "compliance", "2026-08-26", 60, true)
	endSession(t, st, "c", "collections", "2026-08-27", 600, false)

	rec, err := agg.Aggregate(ctx, "2026-08-26")
	require.NoError(t, err)

	assert.Equal(t, 2, rec.SessionsEnded)
	assert.Equal(t, 1, rec.Escalations)
	assert.InDelta(t, 90.0, rec.AvgDurationSeconds, 0.01)
	assert.Equal(t, 1, rec.AgentCounts["collections"])
	assert.Equal(t, 1, rec.AgentCounts["compliance"])

	stored, err := agg.Get(ctx, "2026-08-26")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.SessionsEnded)
}

func TestAggregator_EmptyDateWritesZeroRow(t *testing.T) {
	agg, _ := newTestAggregator(t)

	rec, err := agg.Aggregate(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.Zero(t, rec.SessionsEnded)
	assert.Zero(t, rec.AvgDurationSeconds)
}

func TestAggregator_ReRunOverwrites(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	endSession(t, st, "a", "sales", "2026-08-26", 30, false)
	_, err := agg.Aggregate(ctx, "2026-08-26")
	require.NoError(t, err)

	endSession(t, st, "b", "sales", "2026-08-26", 90, false)
	rec, err := agg.Aggregate(ctx, "2026-08-26")
	require.NoError(t, err)

	assert.Equal(t, 2, rec.SessionsEnded)
	assert.InDelta(t, 60.0, rec.AvgDurationSeconds, 0.01)
}
