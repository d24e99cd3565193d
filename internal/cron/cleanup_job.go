package cron

import (
	"context"
	"errors"

	"github.com/xymail/xymail-backend/internal/cleanup"
)

// CleanupJobName labels the sweep in locks, logs and metrics.
const CleanupJobName = "cleanup-sweep"

type sweeper interface {
	Sweep(ctx context.Context) (cleanup.Report, error)
}

type cleanupJob struct {
	sweeper sweeper
}

// NewCleanupJob schedules the cleanup sweep. Each enabled phase becomes an
// item kind in the run's Result.
func NewCleanupJob(s sweeper) (Job, error) {
	if s == nil {
		return nil, errors.New("cleanup sweeper required")
	}
	return &cleanupJob{sweeper: s}, nil
}

func (j *cleanupJob) Name() string { return CleanupJobName }

func (j *cleanupJob) Run(ctx context.Context) (Result, error) {
	report, err := j.sweeper.Sweep(ctx)
	result := Result{Items: map[string]Counts{}}
	for phase, outcome := range report.Phases() {
		if !outcome.Enabled {
			continue
		}
		result.Items[phase] = Counts{Processed: outcome.Processed, Failed: outcome.Failed}
	}
	return result, err
}
