package model

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/tellerline/tellerline/internal/config"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/logger"
	"github.com/tellerline/tellerline/internal/model/contract"
	anthropicProvider "github.com/tellerline/tellerline/internal/model/providers/anthropic"
	openaiProvider "github.com/tellerline/tellerline/internal/model/providers/openai"
)

// DefaultRouter maps model names from the registry to providers and walks the
// fallback chain when the primary fails.
type DefaultRouter struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	mu        sync.RWMutex
}

func NewRouter(cfg config.ModelsConfig) (*DefaultRouter, error) {
	r := &DefaultRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}

	for _, m := range cfg.Registry {
		switch m.Provider {
		case "openai":
			r.providers[m.Name] = openaiProvider.New(m.APIKey, m.BaseURL, cfg.Embedding)
		case "anthropic":
			r.providers[m.Name] = anthropicProvider.New(m.APIKey)
		default:
			slog.Warn("Unknown provider in model registry, skipping", "provider", m.Provider, "model", m.Name)
		}
	}

	if len(r.providers) == 0 {
		return nil, tlerrors.InvalidInput("no usable model providers configured")
	}
	return r, nil
}

func (r *DefaultRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	traceID := logger.GetTraceID(ctx)

	tryModels := r.tryOrder(model)
	attempts := r.cfg.MaxFallbackAttempts
	if attempts <= 0 {
		attempts = config.DefaultModelMaxFallbackAttempts
	}
	if attempts > len(tryModels) {
		attempts = len(tryModels)
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		tryModel := tryModels[i]

		select {
		case <-ctx.Done():
			return nil, tlerrors.Wrap(ctx.Err(), "completion request cancelled")
		default:
		}

		r.mu.RLock()
		provider, exists := r.providers[tryModel]
		r.mu.RUnlock()
		if !exists {
			continue
		}

		req.Model = tryModel
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			slog.Debug("Completion routed", "model", tryModel, "provider", provider.Name(), "trace_id", traceID)
			return resp, nil
		}

		lastErr = err
		slog.Warn("Provider failed, trying fallback", "model", tryModel, "error", err, "trace_id", traceID)
	}

	if lastErr == nil {
		return nil, tlerrors.Generation(tlerrors.ErrInternal)
	}
	return nil, tlerrors.Generation(tlerrors.MapExternal(lastErr))
}

func (r *DefaultRouter) RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	traceID := logger.GetTraceID(ctx)

	for _, tryModel := range r.tryOrder(model) {
		r.mu.RLock()
		provider, exists := r.providers[tryModel]
		r.mu.RUnlock()
		if !exists {
			continue
		}

		embedding, err := provider.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		slog.Warn("Embedding failed for model, trying next", "model", tryModel, "error", err, "trace_id", traceID)
	}

	return nil, tlerrors.Generation(tlerrors.ErrInternal)
}

func (r *DefaultRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// tryOrder is the requested model first, then the configured default and
// fallback, then everything else in the registry.
func (r *DefaultRouter) tryOrder(requested string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.providers)+2)
	order := make([]string, 0, len(r.providers)+2)
	appendUnique := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}

	appendUnique(requested)
	appendUnique(r.cfg.Default)
	appendUnique(r.cfg.Fallback)

	rest := make([]string, 0, len(r.providers))
	for name := range r.providers {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		appendUnique(name)
	}
	return order
}
