package cron

import (
	"context"
	"errors"
	"time"

	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/metrics"
)

const defaultEvery = time.Hour

// SchedulerParams configure a Scheduler. Every is the cadence for entries
// registered without one.
type SchedulerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.JobMetrics
	Every    time.Duration
	Now      func() time.Time
}

// Scheduler runs each registered job on its own cadence. The interval is
// measured from the end of the previous attempt, skipped attempts included.
type Scheduler struct {
	logg    *logger.Logger
	entries []Entry
	locker  Locker
	metrics *metrics.JobMetrics
	every   time.Duration
	now     func() time.Time
	next    map[string]time.Time
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("locker required")
	}
	if params.Registry == nil || len(params.Registry.Entries()) == 0 {
		return nil, errors.New("at least one job must be registered")
	}
	every := params.Every
	if every <= 0 {
		every = defaultEvery
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		logg:    params.Logger,
		entries: params.Registry.Entries(),
		locker:  params.Locker,
		metrics: params.Metrics,
		every:   every,
		now:     now,
		next:    make(map[string]time.Time),
	}, nil
}

// Run fires every job immediately and then on its cadence until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wake := s.RunDue(ctx)
		timer := time.NewTimer(wake.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(ctx, "cron scheduler stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunDue runs the jobs whose turn has come and returns the earliest time any
// job is due again.
func (s *Scheduler) RunDue(ctx context.Context) time.Time {
	var wake time.Time
	for _, entry := range s.entries {
		name := entry.Job.Name()
		due, seen := s.next[name]
		if !seen || !s.now().Before(due) {
			s.runOnce(ctx, entry.Job)
			due = s.now().Add(s.cadence(entry))
			s.next[name] = due
		}
		if wake.IsZero() || due.Before(wake) {
			wake = due
		}
	}
	return wake
}

func (s *Scheduler) cadence(entry Entry) time.Duration {
	if entry.Every > 0 {
		return entry.Every
	}
	return s.every
}

// runOnce takes the job's lock, runs it and reports the outcome.
func (s *Scheduler) runOnce(ctx context.Context, job Job) string {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)

	lock := s.locker.For(name)
	acquired, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "cron lock unavailable", err)
		s.metrics.ObserveRun(name, metrics.RunFailed, 0, s.now())
		return metrics.RunFailed
	}
	if !acquired {
		s.logg.Info(jobCtx, "job held by another worker; skipping")
		s.metrics.ObserveRun(name, metrics.RunSkipped, 0, s.now())
		return metrics.RunSkipped
	}
	defer func() {
		if err := lock.Release(jobCtx); err != nil {
			s.logg.Error(jobCtx, "cron lock release failed", err)
		}
	}()

	start := s.now()
	result, runErr := job.Run(jobCtx)
	finished := s.now()
	took := finished.Sub(start)

	total := result.Totals()
	fields := map[string]any{
		"duration_ms": took.Milliseconds(),
		"processed":   total.Processed,
		"failed":      total.Failed,
	}
	for _, kind := range result.Kinds() {
		counts := result.Items[kind]
		s.metrics.AddItems(name, kind, counts.Processed, counts.Failed)
		fields[kind] = counts.Processed
	}
	logCtx := s.logg.WithFields(jobCtx, fields)

	if runErr != nil {
		s.logg.Error(logCtx, "job failed", runErr)
		s.metrics.ObserveRun(name, metrics.RunFailed, took, finished)
		return metrics.RunFailed
	}
	s.logg.Info(logCtx, "job finished")
	s.metrics.ObserveRun(name, metrics.RunSucceeded, took, finished)
	return metrics.RunSucceeded
}
