package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tellerline/tellerline/internal/engine"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/idempotency"
	"github.com/tellerline/tellerline/internal/logger"
	"github.com/tellerline/tellerline/internal/metrics"
)

// Handler carries the request handlers and their collaborators.
type Handler struct {
	orchestrator *engine.Orchestrator
	aggregator   *metrics.Aggregator
	ledger       *idempotency.Ledger
	dedupeTTL    time.Duration
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	Channel   string `json:"channel"`
	Caller    string `json:"caller"`
	BankID    string `json:"bank_id"`
	// Source and ExternalID identify the upstream delivery for dedupe;
	// telephony providers re-POST on slow responses.
	Source     string `json:"source,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

type turnResponse struct {
	SessionID  string   `json:"session_id"`
	Reply      string   `json:"reply"`
	Agent      string   `json:"agent"`
	TurnNumber int      `json:"turn_number"`
	Status     string   `json:"status"`
	Escalated  bool     `json:"escalated"`
	Ended      bool     `json:"ended"`
	Events     []string `json:"events,omitempty"`
	Duplicate  bool     `json:"duplicate,omitempty"`
}

type endRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	var dedupeKey string
	if req.Source != "" && req.ExternalID != "" {
		dedupeKey = req.Source + ":" + req.ExternalID
		if cached, seen := h.ledger.Lookup(dedupeKey); seen {
			// The provider re-POSTs because it lost the first response;
			// answer with the response the committed turn produced.
			var resp turnResponse
			if err := json.Unmarshal(cached, &resp); err != nil {
				resp = turnResponse{SessionID: req.SessionID}
			}
			resp.Duplicate = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	result, err := h.orchestrator.ProcessTurn(r.Context(), engine.TurnRequest{
		SessionID: req.SessionID,
		Input:     req.Input,
		Channel:   req.Channel,
		Caller:    req.Caller,
		BankID:    req.BankID,
	})
	if err != nil {
		// The delivery stays unrecorded so the provider's retry of this
		// same delivery runs the turn again.
		h.writeError(w, r, err)
		return
	}

	events := make([]string, 0, len(result.Events))
	for _, ev := range result.Events {
		events = append(events, ev.String())
	}
	resp := turnResponse{
		SessionID:  result.SessionID,
		Reply:      result.Reply,
		Agent:      string(result.Agent),
		TurnNumber: result.TurnNumber,
		Status:     result.Status,
		Escalated:  result.Escalated,
		Ended:      result.Ended,
		Events:     events,
	}

	if dedupeKey != "" {
		if payload, err := json.Marshal(resp); err == nil {
			h.ledger.Record(dedupeKey, h.dedupeTTL, payload)
			if err := h.ledger.Save(); err != nil {
				slog.Warn("Failed to persist delivery ledger", "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req endRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.orchestrator.EndSession(r.Context(), sessionID, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "ended"})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rec, err := h.orchestrator.Session(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":       rec.SessionID,
		"caller":           rec.Caller,
		"channel":          rec.Channel,
		"bank_id":          rec.BankID,
		"current_agent":    rec.CurrentAgent,
		"status":           rec.Status,
		"escalated":        rec.Escalated,
		"consent":          rec.Consent,
		"started_at":       rec.StartedAt,
		"ended_at":         rec.EndedAt,
		"duration_seconds": rec.DurationSeconds,
		"end_reason":       rec.EndReason,
	})
}

func (h *Handler) DailyMetrics(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}

	rec, err := h.aggregator.Get(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no metrics for date"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":                 rec.Date,
		"sessions_ended":       rec.SessionsEnded,
		"escalations":          rec.Escalations,
		"avg_duration_seconds": rec.AvgDurationSeconds,
		"agent_counts":         rec.AgentCounts,
		"computed_at":          rec.ComputedAt,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the engine taxonomy to HTTP statuses. Internal detail stays
// in the logs; the wire carries a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := logger.GetTraceID(r.Context())

	switch {
	case tlerrors.IsCategory(err, tlerrors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case tlerrors.IsCategory(err, tlerrors.ErrUnknownSession):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
	case tlerrors.IsCategory(err, tlerrors.ErrSessionEnded):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "session has ended"})
	case tlerrors.IsCategory(err, tlerrors.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid session state"})
	default:
		slog.Error("Request failed",
			"path", r.URL.Path, "category", tlerrors.Category(err), "error", err, "trace_id", traceID)
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "we're sorry, the service is temporarily degraded; please try again"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
