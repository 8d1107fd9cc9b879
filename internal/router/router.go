package router

import (
	"context"
	"log/slog"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/logger"
)

// Strategy classifies one caller utterance into a target agent kind with a
// confidence in [0,1]. Strategies never see session state; guards live in
// Resolve.
type Strategy interface {
	Classify(ctx context.Context, text string, current agent.Kind) (agent.Kind, float64, error)
	Name() string
}

// Router applies the state-machine guards, then the configured strategy.
type Router struct {
	strategy      Strategy
	policy        *compliance.Policy
	minConfidence float64
}

func New(strategy Strategy, policy *compliance.Policy, cfg config.RoutingConfig) *Router {
	min := cfg.MinConfidence
	if min <= 0 {
		min = config.DefaultRoutingMinConfidence
	}
	return &Router{strategy: strategy, policy: policy, minConfidence: min}
}

// Resolve picks the agent for the next turn. Guard order matters: an
// escalated session is pinned to compliance for its remainder, and a sticky
// current agent holds the session regardless of what the text looks like.
func (r *Router) Resolve(ctx context.Context, text string, current agent.Kind, escalated bool) agent.Kind {
	if escalated {
		return agent.KindCompliance
	}
	if current != "" && r.policy.IsSticky(string(current)) {
		return current
	}

	kind, confidence, err := r.strategy.Classify(ctx, text, current)
	if err != nil {
		slog.Warn("Intent classification failed, keeping current agent",
			"strategy", r.strategy.Name(), "error", err, "trace_id", logger.GetTraceID(ctx))
		if current != "" {
			return current
		}
		return agent.KindCustomerService
	}

	if confidence < r.minConfidence {
		if current != "" {
			return current
		}
		return agent.KindCustomerService
	}

	slog.Debug("Intent classified",
		"strategy", r.strategy.Name(), "agent", kind, "confidence", confidence,
		"trace_id", logger.GetTraceID(ctx))
	return kind
}

// NewStrategy builds the configured classification strategy. The vector
// strategy needs an embedder; when it cannot be prepared the router falls
// back to keywords rather than failing startup.
func NewStrategy(ctx context.Context, cfg config.RoutingConfig, embedder Embedder, embeddingModel string) Strategy {
	if cfg.Strategy == "vector" && embedder != nil {
		vs, err := NewVectorStrategy(ctx, embedder, embeddingModel)
		if err == nil {
			return vs
		}
		slog.Warn("Vector routing unavailable, falling back to keywords", "error", err)
	}
	return NewKeywordStrategy()
}
