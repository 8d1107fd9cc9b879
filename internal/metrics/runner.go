package metrics

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tellerline/tellerline/internal/config"
)

// Reconciler is the crash-recovery sweep the runner drives alongside the
// nightly rollup.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Runner drives the nightly metrics rollup and the periodic reconciliation
// sweep on cron schedules.
type Runner struct {
	cron       *cron.Cron
	aggregator *Aggregator
	reconciler Reconciler
	cfg        config.AggregatorConfig
}

func NewRunner(aggregator *Aggregator, reconciler Reconciler, cfg config.AggregatorConfig) *Runner {
	return &Runner{
		cron:       cron.New(),
		aggregator: aggregator,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

func (r *Runner) Start(ctx context.Context) error {
	schedule := r.cfg.Schedule
	if schedule == "" {
		schedule = config.DefaultAggregatorSchedule
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.aggregator.AggregateYesterday(ctx); err != nil {
			slog.Error("Scheduled aggregation failed", "error", err)
		}
	}); err != nil {
		return err
	}

	reconcile := r.cfg.ReconcileSchedule
	if reconcile == "" {
		reconcile = config.DefaultAggregatorReconcileSchedule
	}
	if _, err := r.cron.AddFunc(reconcile, func() {
		if _, err := r.reconciler.Reconcile(ctx); err != nil {
			slog.Error("Scheduled reconciliation failed", "error", err)
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	slog.Info("Metrics runner started", "aggregate", schedule, "reconcile", reconcile)
	return nil
}

func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
