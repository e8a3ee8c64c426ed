package sched

import (
	"context"
	"errors"
	"log/slog"

	"seriesrelay/internal/relay"
	"seriesrelay/internal/store"
)

// Runner is the slice of the relay engine a scheduled scan needs.
type Runner interface {
	Run(ctx context.Context) error
}

// ScanJob launches a full index scan on a cron schedule. An already-running
// scan is not an error, the tick is simply skipped.
type ScanJob struct {
	Engine       Runner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 */6 * * *"
}

var _ Job = (*ScanJob)(nil)

// Name implements Job.
func (j *ScanJob) Name() string { return "index_scan" }

// Schedule implements Job.
func (j *ScanJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 */6 * * *"
}

// Run implements Job.
func (j *ScanJob) Run(ctx context.Context) error {
	err := j.Engine.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, relay.ErrBusy):
		j.Logger.Info("sched: scan already in progress, skipping tick")
		return nil
	case errors.Is(err, relay.ErrStopped):
		j.Logger.Info("sched: scan stopped before completion")
		return nil
	default:
		return err
	}
}

// Counter is the slice of the store StatsJob reads.
type Counter interface {
	Counts(ctx context.Context) (store.Counts, error)
}

// StatsJob periodically logs cumulative store totals so long-running
// deployments leave a progress trail in the logs.
type StatsJob struct {
	Store        Counter
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

var _ Job = (*StatsJob)(nil)

// Name implements Job.
func (j *StatsJob) Name() string { return "store_stats" }

// Schedule implements Job.
func (j *StatsJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run implements Job.
func (j *StatsJob) Run(ctx context.Context) error {
	counts, err := j.Store.Counts(ctx)
	if err != nil {
		return err
	}
	j.Logger.Info("sched: store totals",
		"series", counts.Series,
		"seasons", counts.Seasons,
		"forwards", counts.Forwards,
	)
	return nil
}
