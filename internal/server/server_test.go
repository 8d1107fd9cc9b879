package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/concurrency"
	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/engine"
	"github.com/tellerline/tellerline/internal/idempotency"
	"github.com/tellerline/tellerline/internal/metrics"
	"github.com/tellerline/tellerline/internal/model/contract"
	"github.com/tellerline/tellerline/internal/router"
	"github.com/tellerline/tellerline/internal/session"
	"github.com/tellerline/tellerline/internal/store"
)

type stubGenerator struct{ reply string }

func (s *stubGenerator) Complete(ctx context.Context, system string, messages []contract.Message) (string, error) {
	return s.reply, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	policy := compliance.DefaultPolicy()
	emitter := compliance.NewEmitter(policy, nil)
	registry := agent.NewRegistry(&stubGenerator{reply: "Happy to help."}, policy, "First National")
	sessions := session.NewManager(st, concurrency.NewSessionLockManager(), "First National", 10)
	rt := router.New(router.NewKeywordStrategy(), policy, config.RoutingConfig{MinConfidence: 0.25})

	orch, err := engine.New(sessions, rt, registry, emitter, policy, st, "First National", config.EngineConfig{})
	require.NoError(t, err)

	ledger, err := idempotency.NewLedger(filepath.Join(dir, "deliveries.json"))
	require.NoError(t, err)

	srv, err := New(config.ServerConfig{Port: 0}, orch, metrics.NewAggregator(st), ledger, "1h")
	require.NoError(t, err)
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ProcessTurn(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Router(), "/v1/turns", turnRequest{
		SessionID: "sess-1", Input: "what is my balance", Channel: "voice", Caller: "+15550100", BankID: "default",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "customer_service", resp.Agent)
	assert.Contains(t, resp.Reply, "Happy to help.")
	assert.Equal(t, 2, resp.TurnNumber)
}

func TestServer_ProcessTurnDeduplicatesDeliveries(t *testing.T) {
	srv := newTestServer(t)

	body := turnRequest{
		SessionID: "sess-1", Input: "what is my balance", Channel: "voice",
		Caller: "+15550100", BankID: "default", Source: "twilio", ExternalID: "CA123",
	}

	first := postJSON(t, srv.Router(), "/v1/turns", body)
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp turnResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	assert.False(t, firstResp.Duplicate)

	second := postJSON(t, srv.Router(), "/v1/turns", body)
	require.Equal(t, http.StatusOK, second.Code)
	var secondResp turnResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.True(t, secondResp.Duplicate)
	assert.Equal(t, firstResp.Reply, secondResp.Reply)
	assert.Equal(t, firstResp.TurnNumber, secondResp.TurnNumber)
	assert.Equal(t, firstResp.Agent, secondResp.Agent)
}

func TestServer_FailedDeliveryIsRetryable(t *testing.T) {
	srv := newTestServer(t)

	// Empty input makes the turn fail; the delivery key must stay
	// unconsumed so the provider's re-POST can process the turn.
	failed := postJSON(t, srv.Router(), "/v1/turns", turnRequest{
		SessionID: "sess-1", Input: "", Channel: "voice", Caller: "+15550100",
		BankID: "default", Source: "twilio", ExternalID: "CA999",
	})
	require.Equal(t, http.StatusBadRequest, failed.Code)

	retry := postJSON(t, srv.Router(), "/v1/turns", turnRequest{
		SessionID: "sess-1", Input: "what is my balance", Channel: "voice", Caller: "+15550100",
		BankID: "default", Source: "twilio", ExternalID: "CA999",
	})
	require.Equal(t, http.StatusOK, retry.Code)

	var resp turnResponse
	require.NoError(t, json.Unmarshal(retry.Body.Bytes(), &resp))
	assert.False(t, resp.Duplicate)
	assert.NotEmpty(t, resp.Reply)
	assert.Equal(t, 2, resp.TurnNumber)
}

func TestServer_ProcessTurnRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/turns", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetSessionUnknownIs404(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EndSessionThenTurnConflicts(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Router(), "/v1/turns", turnRequest{
		SessionID: "sess-1", Input: "what is my balance", Channel: "voice", Caller: "+15550100", BankID: "default",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	end := postJSON(t, srv.Router(), "/v1/sessions/sess-1/end", endRequest{Reason: "caller_hangup"})
	require.Equal(t, http.StatusOK, end.Code)

	again := postJSON(t, srv.Router(), "/v1/turns", turnRequest{
		SessionID: "sess-1", Input: "hello again", Channel: "voice", Caller: "+15550100", BankID: "default",
	})
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestServer_DailyMetricsNotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/daily?date=2026-01-01", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
