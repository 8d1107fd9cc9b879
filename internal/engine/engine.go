package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/config"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/logger"
	"github.com/tellerline/tellerline/internal/router"
	"github.com/tellerline/tellerline/internal/session"
	"github.com/tellerline/tellerline/internal/store"
	"github.com/tellerline/tellerline/internal/transcript"
)

// TurnRequest is one caller utterance addressed to a session.
type TurnRequest struct {
	SessionID string
	Input     string
	Channel   string
	Caller    string
	BankID    string
}

// TurnResult is the engine's reply for one processed turn.
type TurnResult struct {
	SessionID  string
	Reply      string
	Agent      agent.Kind
	TurnNumber int
	Status     string
	Escalated  bool
	Ended      bool
	Events     []compliance.EventType
}

// Orchestrator runs the per-turn pipeline: resolve the session, pick the
// agent, let it act, then commit the transcript rows, compliance events and
// session update as one unit. Turns of one session are strictly serialized;
// sessions never contend with each other.
type Orchestrator struct {
	sessions *session.Manager
	router   *router.Router
	registry *agent.Registry
	emitter  *compliance.Emitter
	policy   *compliance.Policy
	store    *store.Store
	bankName string

	turnDeadline      time.Duration
	writeRetryMax     int
	writeRetryBackoff time.Duration
}

func New(
	sessions *session.Manager,
	rt *router.Router,
	registry *agent.Registry,
	emitter *compliance.Emitter,
	policy *compliance.Policy,
	st *store.Store,
	bankName string,
	cfg config.EngineConfig,
) (*Orchestrator, error) {
	deadline, err := config.DurationOrDefault(cfg.TurnDeadline, config.DefaultEngineTurnDeadline)
	if err != nil {
		return nil, err
	}
	backoff, err := config.DurationOrDefault(cfg.WriteRetryBackoff, config.DefaultEngineWriteRetryBackoff)
	if err != nil {
		return nil, err
	}
	retryMax := cfg.WriteRetryMax
	if retryMax <= 0 {
		retryMax = config.DefaultEngineWriteRetryMax
	}
	return &Orchestrator{
		sessions:          sessions,
		router:            rt,
		registry:          registry,
		emitter:           emitter,
		policy:            policy,
		store:             st,
		bankName:          bankName,
		turnDeadline:      deadline,
		writeRetryMax:     retryMax,
		writeRetryBackoff: backoff,
	}, nil
}

// ProcessTurn handles one caller turn end to end. Nothing becomes durable
// unless the whole turn commits: an error at any stage leaves the session
// exactly as it was.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Input == "" {
		return nil, tlerrors.InvalidInput("empty turn input")
	}

	rec, err := o.sessions.GetOrCreate(ctx, req.SessionID, req.Channel, req.Caller, req.BankID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithSessionID(ctx, rec.SessionID)

	var result *TurnResult
	err = o.sessions.WithSession(rec.SessionID, func() error {
		ctx, cancel := context.WithTimeout(ctx, o.turnDeadline)
		defer cancel()

		// Re-read under the lock; a preceding turn may have changed state.
		rec, err := o.sessions.Get(ctx, rec.SessionID)
		if err != nil {
			return err
		}
		if rec.Status == store.StatusEnded {
			return tlerrors.ErrSessionEnded
		}

		view, err := o.sessions.Snapshot(ctx, rec)
		if err != nil {
			return err
		}

		target, res := o.dispatch(ctx, req.Input, rec, view)

		// First-contact recording/AI disclosure precedes everything else the
		// caller hears.
		if view.TurnCount == 0 {
			res.Reply = compliance.RenderDisclosure(o.policy.CallStartDisclosure, o.bankName) + " " + res.Reply
		}

		builder := transcript.NewBuilder(rec.SessionID, view.TurnCount)
		builder.Append(transcript.RoleUser, req.Input, string(target), nil)
		replyTurn := builder.Append(transcript.RoleAssistant, res.Reply, string(target), res.Metadata)

		commit := builder.Commit()
		recorded := o.emitter.Record(commit, replyTurn, res.Triggers, res.Metadata, view.Flags)

		update, err := o.buildUpdate(rec, target, res, recorded)
		if err != nil {
			return err
		}
		builder.SetUpdate(update)

		if err := o.commitWithRetry(ctx, *commit); err != nil {
			return err
		}

		result = &TurnResult{
			SessionID:  rec.SessionID,
			Reply:      res.Reply,
			Agent:      target,
			TurnNumber: replyTurn,
			Status:     update.Status,
			Escalated:  update.Escalated,
			Ended:      update.Status == store.StatusEnded,
			Events:     recorded,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Ended {
		o.sessions.Forget(result.SessionID)
	}

	slog.Info("Turn processed",
		"session_id", result.SessionID, "agent", result.Agent, "turn", result.TurnNumber,
		"status", result.Status, "events", len(result.Events), "trace_id", logger.GetTraceID(ctx))
	return result, nil
}

// dispatch applies the engine-level guards, then routes to a specialist.
// Guards run on the raw caller input before any classification so a caller
// demand for a human, or an overheating conversation, short-circuits routing.
func (o *Orchestrator) dispatch(ctx context.Context, input string, rec *store.SessionRecord, view *agent.SessionView) (agent.Kind, *agent.Result) {
	current := agent.Kind(rec.CurrentAgent)

	if !rec.Escalated && o.policy.IsEscalationRequest(input) {
		return current, &agent.Result{
			Reply:    "Of course. I'm transferring you to a human representative now. Please stay on the line.",
			Escalate: true,
			Triggers: []compliance.EventType{compliance.EventHumanHandoff},
			Metadata: map[string]string{"escalation_reason": "human_requested"},
		}
	}

	if !rec.Escalated && o.policy.Sentiment(input) == "very_negative" {
		return current, &agent.Result{
			Reply: "I understand your frustration and I sincerely apologize. " +
				"Let me connect you with a senior representative immediately.",
			Escalate: true,
			Metadata: map[string]string{"escalation_reason": "negative_sentiment"},
		}
	}

	target := o.router.Resolve(ctx, input, current, rec.Escalated)
	ag := o.registry.Get(target)
	res, err := ag.Handle(ctx, input, view)
	if err != nil {
		// Agents normally degrade internally; this is the backstop.
		slog.Error("Agent failed", "agent", target, "error", err, "trace_id", logger.GetTraceID(ctx))
		res = &agent.Result{
			Reply:    "I'm experiencing a technical issue. Let me connect you with a representative.",
			Escalate: true,
			Metadata: map[string]string{"escalation_reason": "agent_failure"},
		}
	}
	return target, res
}

// buildUpdate folds an agent result into the post-turn session mutation.
// Escalation is handled uniformly here: any escalate outcome moves the
// session to escalated status and pins the compliance agent for the
// remainder. The escalated flag never clears.
func (o *Orchestrator) buildUpdate(rec *store.SessionRecord, target agent.Kind, res *agent.Result, recorded []compliance.EventType) (*store.SessionUpdate, error) {
	nextAgent := target
	if res.NextAgent != "" {
		nextAgent = res.NextAgent
	}

	status := rec.Status
	escalated := rec.Escalated
	if res.Escalate {
		escalated = true
		nextAgent = agent.KindCompliance
		if status == store.StatusActive {
			if err := session.ValidateTransition(status, store.StatusEscalated); err != nil {
				return nil, err
			}
			status = store.StatusEscalated
		}
	}

	consent := rec.Consent
	for _, ev := range recorded {
		switch ev {
		case compliance.EventConsentCapture:
			consent = true
		case compliance.EventConsentRevoked:
			consent = false
		}
	}

	update := &store.SessionUpdate{
		CurrentAgent: string(nextAgent),
		Status:       status,
		Escalated:    escalated,
		Consent:      consent,
	}

	if res.EndSession {
		if err := session.ValidateTransition(status, store.StatusEnded); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		update.Status = store.StatusEnded
		update.EndedAt = &now
		update.DurationSeconds = int64(now.Sub(rec.StartedAt).Seconds())
		update.EndReason = res.Metadata["fallback"]
		if update.EndReason == "" {
			update.EndReason = "agent_completed"
		}
	}
	return update, nil
}

// commitWithRetry drives the turn's unit of work through bounded retries.
// Only retryable store failures get another attempt; the backoff doubles per
// round. A turn whose commit exhausts retries fails whole.
func (o *Orchestrator) commitWithRetry(ctx context.Context, commit store.TurnCommit) error {
	backoff := o.writeRetryBackoff
	var lastErr error
	for attempt := 1; attempt <= o.writeRetryMax; attempt++ {
		lastErr = o.store.CommitTurn(ctx, commit)
		if lastErr == nil {
			return nil
		}
		if !tlerrors.IsRetryable(lastErr) || attempt == o.writeRetryMax {
			break
		}
		slog.Warn("Turn commit failed, retrying",
			"session_id", commit.SessionID, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return tlerrors.Wrap(ctx.Err(), "turn commit cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return tlerrors.Wrap(lastErr, "turn commit failed")
}

// EndSession finalizes a session out of band. Ending an ended session is a
// no-op.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return tlerrors.InvalidInput("session id required")
	}
	if reason == "" {
		reason = "caller_hangup"
	}
	if err := o.sessions.End(ctx, sessionID, reason); err != nil {
		return err
	}
	o.sessions.Forget(sessionID)
	return nil
}

// Session returns the current session record.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	if sessionID == "" {
		return nil, tlerrors.InvalidInput("session id required")
	}
	return o.sessions.Get(ctx, sessionID)
}

// Reconcile finishes session updates left staged by a crash between the
// audit write and the status flip.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	n, err := o.store.ApplyPendingUpdates(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		slog.Info("Reconciled staged session updates", "count", n)
	}
	return n, nil
}
