package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/tellerline/tellerline/internal/store"
)

// Aggregator folds ended sessions into the daily_metrics rollup. It is
// idempotent per date: re-running a day recomputes and overwrites the row.
type Aggregator struct {
	store *store.Store
}

func NewAggregator(st *store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Aggregate computes the rollup for one calendar date (YYYY-MM-DD, UTC).
func (a *Aggregator) Aggregate(ctx context.Context, date string) (*store.DailyMetricRecord, error) {
	sessions, err := a.store.EndedSessionsOn(ctx, date)
	if err != nil {
		return nil, err
	}

	rec := store.DailyMetricRecord{
		Date:        date,
		AgentCounts: make(map[string]int),
		ComputedAt:  time.Now().UTC(),
	}

	var totalDuration int64
	for _, s := range sessions {
		rec.SessionsEnded++
		totalDuration += s.DurationSeconds
		if s.Escalated {
			rec.Escalations++
		}
		rec.AgentCounts[s.CurrentAgent]++
	}
	if rec.SessionsEnded > 0 {
		rec.AvgDurationSeconds = float64(totalDuration) / float64(rec.SessionsEnded)
	}

	if err := a.store.UpsertDailyMetric(ctx, rec); err != nil {
		return nil, err
	}
	slog.Info("Daily metrics aggregated",
		"date", date, "sessions", rec.SessionsEnded, "escalations", rec.Escalations)
	return &rec, nil
}

// AggregateYesterday runs the rollup for the previous UTC day, the shape the
// nightly schedule wants.
func (a *Aggregator) AggregateYesterday(ctx context.Context) (*store.DailyMetricRecord, error) {
	date := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	return a.Aggregate(ctx, date)
}

// Get returns the stored rollup for a date, or nil when absent.
func (a *Aggregator) Get(ctx context.Context, date string) (*store.DailyMetricRecord, error) {
	return a.store.DailyMetric(ctx, date)
}
