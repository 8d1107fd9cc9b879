package model

import (
	"context"
	"log/slog"
	"time"

	"github.com/tellerline/tellerline/internal/config"
	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/logger"
	"github.com/tellerline/tellerline/internal/model/contract"
)

// Completer adapts the model router to the single-call generation contract
// agents consume. Transient failures get one retry round before the error is
// surfaced.
type Completer struct {
	router      Router
	model       string
	maxTokens   int
	temperature float64
	retryMax    int
}

func NewCompleter(router Router, models config.ModelsConfig, engine config.EngineConfig) *Completer {
	retryMax := engine.GenerationRetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	maxTokens := engine.GenerationMaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultEngineGenerationMaxTokens
	}
	return &Completer{
		router:      router,
		model:       models.Default,
		maxTokens:   maxTokens,
		temperature: engine.GenerationTemperature,
		retryMax:    retryMax,
	}
}

func (c *Completer) Complete(ctx context.Context, system string, messages []contract.Message) (string, error) {
	req := contract.CompletionRequest{
		System:      system,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", tlerrors.Wrap(ctx.Err(), "completion cancelled")
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		resp, err := c.router.Route(ctx, c.model, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		if !tlerrors.IsRetryable(err) && !tlerrors.IsCategory(err, tlerrors.ErrGeneration) {
			break
		}
		slog.Warn("Generation attempt failed, retrying",
			"attempt", attempt+1, "error", err, "trace_id", logger.GetTraceID(ctx))
	}
	return "", lastErr
}
