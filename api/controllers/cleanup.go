package controllers

import (
	"context"
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/internal/cleanup"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type cleanupService interface {
	Sweep(ctx context.Context) (cleanup.Report, error)
	Stats(ctx context.Context) (cleanup.Stats, error)
}

// CleanupRun executes a sweep. Per-row failures are reported in the phase
// counters; only a sweep that could not run at all is an error.
func CleanupRun(svc cleanupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Sweep(r.Context())
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "cleanup sweep finished with failures")
			}
			if !anyPhaseEnabled(report) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, report)
	}
}

func CleanupStats(svc cleanupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func anyPhaseEnabled(report cleanup.Report) bool {
	for _, phase := range report.Phases() {
		if phase.Enabled {
			return true
		}
	}
	return false
}
