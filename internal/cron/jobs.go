package cron

import (
	"context"
	"log/slog"
)

// Purger is the subset of the memory store the purge job needs.
// Defined here to avoid a dependency on the store package.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgeJob removes TTL-expired records on a schedule.
type PurgeJob struct {
	Store        Purger
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*PurgeJob)(nil)

// Name implements Job.
func (j *PurgeJob) Name() string { return "purge_expired" }

// Schedule implements Job.
func (j *PurgeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run purges expired records.
func (j *PurgeJob) Run(ctx context.Context) error {
	purged, err := j.Store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if purged > 0 && j.Logger != nil {
		j.Logger.Info("cron: purged expired records", "count", purged)
	}
	return nil
}

// Runner is a maintenance engine pass invoked on a schedule. Both the
// consolidation and compression engines satisfy it through EngineJob's
// run func.
type Runner func(ctx context.Context) error

// EngineJob runs a maintenance engine pass as a scheduled safety net.
// The same engines also run at session end; the store's maintenance lock
// keeps concurrent passes from overlapping.
type EngineJob struct {
	JobName      string
	Runner       Runner
	ScheduleExpr string
}

// Compile-time interface check.
var _ Job = (*EngineJob)(nil)

// Name implements Job.
func (j *EngineJob) Name() string { return j.JobName }

// Schedule implements Job.
func (j *EngineJob) Schedule() string { return j.ScheduleExpr }

// Run executes one engine pass.
func (j *EngineJob) Run(ctx context.Context) error {
	return j.Runner(ctx)
}
