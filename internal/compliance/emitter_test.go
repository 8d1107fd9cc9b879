package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/store"
)

func TestEmitter_RecordStagesEvents(t *testing.T) {
	e := NewEmitter(DefaultPolicy(), nil)
	commit := &store.TurnCommit{SessionID: "sess-1"}

	recorded := e.Record(commit, 2, []EventType{EventFraudHold}, map[string]string{"action": "card_block"}, nil)

	require.Len(t, recorded, 1)
	require.Len(t, commit.Events, 1)
	assert.Equal(t, "fraud_hold", commit.Events[0].Type)
	assert.Equal(t, 2, commit.Events[0].TurnNumber)
	assert.NotEmpty(t, commit.Events[0].ID)
}

func TestEmitter_IdempotentTypeAlreadyInSessionIsDropped(t *testing.T) {
	e := NewEmitter(DefaultPolicy(), nil)
	commit := &store.TurnCommit{SessionID: "sess-1"}
	existing := map[string]bool{"cease_and_desist": true}

	recorded := e.Record(commit, 3, []EventType{EventCeaseAndDesist}, nil, existing)

	assert.Empty(t, recorded)
	assert.Empty(t, commit.Events)
}

func TestEmitter_IdempotentTypeDedupedWithinCommit(t *testing.T) {
	e := NewEmitter(DefaultPolicy(), nil)
	commit := &store.TurnCommit{SessionID: "sess-1"}

	first := e.Record(commit, 1, []EventType{EventMiniMiranda}, nil, nil)
	second := e.Record(commit, 1, []EventType{EventMiniMiranda}, nil, nil)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Len(t, commit.Events, 1)
}

func TestEmitter_NonIdempotentTypeRepeats(t *testing.T) {
	e := NewEmitter(DefaultPolicy(), nil)
	commit := &store.TurnCommit{SessionID: "sess-1"}
	existing := map[string]bool{"fraud_hold": true}

	recorded := e.Record(commit, 4, []EventType{EventFraudHold}, nil, existing)

	assert.Len(t, recorded, 1)
}

func TestEmitter_RedactsDetails(t *testing.T) {
	e := NewEmitter(DefaultPolicy(), nil)
	commit := &store.TurnCommit{SessionID: "sess-1"}

	e.Record(commit, 1, []EventType{EventComplaint}, map[string]string{
		"note": "caller read SSN 123-45-6789 and card 4111 1111 1111 1111",
	}, nil)

	require.Len(t, commit.Events, 1)
	note := commit.Events[0].Details["note"]
	assert.NotContains(t, note, "123-45-6789")
	assert.NotContains(t, note, "4111")
	assert.Contains(t, note, "[REDACTED]")
}
