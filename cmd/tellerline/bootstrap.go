package main

import (
	"context"
	"fmt"

	"github.com/tellerline/tellerline/internal/agent"
	"github.com/tellerline/tellerline/internal/compliance"
	"github.com/tellerline/tellerline/internal/concurrency"
	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/engine"
	"github.com/tellerline/tellerline/internal/metrics"
	"github.com/tellerline/tellerline/internal/model"
	"github.com/tellerline/tellerline/internal/router"
	"github.com/tellerline/tellerline/internal/session"
	"github.com/tellerline/tellerline/internal/store"
)

// app bundles the wired components a command needs. Commands that only touch
// the store (aggregate, reconcile) use openStore directly.
type app struct {
	store      *store.Store
	orch       *engine.Orchestrator
	aggregator *metrics.Aggregator
}

func openStore(cfg *config.Config) (*store.Store, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, err
	}
	lockRetry, err := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, err
	}
	lockMaxRetry := cfg.Store.LockMaxRetry
	if lockMaxRetry <= 0 {
		lockMaxRetry = config.DefaultStoreLockMaxRetry
	}

	return store.Open(cfg.Store.Path, &store.FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: lockMaxRetry,
	})
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	modelRouter, err := model.NewRouter(cfg.Models)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build model router: %w", err)
	}
	completer := model.NewCompleter(modelRouter, cfg.Models, cfg.Engine)

	policy := compliance.DefaultPolicy()
	emitter := compliance.NewEmitter(policy, cfg.Compliance.RedactPatterns)
	registry := agent.NewRegistry(completer, policy, cfg.Bank.Name)

	locks := concurrency.NewSessionLockManager()
	sessions := session.NewManager(st, locks, cfg.Bank.Name, cfg.Engine.HistoryLimit)

	strategy := router.NewStrategy(ctx, cfg.Routing, modelRouter, cfg.Models.Embedding)
	intents := router.New(strategy, policy, cfg.Routing)

	orch, err := engine.New(sessions, intents, registry, emitter, policy, st, cfg.Bank.Name, cfg.Engine)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &app{
		store:      st,
		orch:       orch,
		aggregator: metrics.NewAggregator(st),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
