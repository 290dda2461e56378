package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the background maintenance passes on cron schedules.
// A pass that is still running when its next tick arrives is skipped for
// that tick; purge, consolidation, and compression are all idempotent, so
// a skipped tick is caught up by the next one.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	inRun  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates an empty scheduler. Register every job before
// calling Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		inRun:  make(map[string]*sync.Mutex),
		logger: logger.With("component", "scheduler"),
	}
}

// RegisterJob adds a maintenance job. Job names must be unique; the name
// keys the overlap guard and the log lines.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.inRun[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.inRun[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start parses every job's schedule and begins ticking. A single invalid
// cron expression fails the whole start, so a misconfigured schedule is
// caught at boot rather than silently never firing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Schedule(), s.tick(ctx, job)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
	return nil
}

// tick wraps one job run with the overlap guard. TryLock keeps the check
// and the acquire atomic, so two ticks can never run the same pass.
func (s *Scheduler) tick(ctx context.Context, job Job) func() {
	guard := s.inRun[job.Name()]
	return func() {
		if !guard.TryLock() {
			s.logger.Warn("maintenance pass still running, skipping tick", "job", job.Name())
			return
		}
		defer guard.Unlock()

		s.logger.Debug("maintenance pass starting", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("maintenance pass failed", "job", job.Name(), "error", err)
			return
		}
		s.logger.Debug("maintenance pass finished", "job", job.Name())
	}
}

// Stop cancels the job context and waits for in-flight passes to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("maintenance scheduler stopped")
	}
	return nil
}
