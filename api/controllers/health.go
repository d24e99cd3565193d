package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/pkg/config"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

const (
	envHeader          = "X-Xymail-Env"
	readyCheckDeadline = 2 * time.Second
)

// Pinger is any dependency with a health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckDeadline)
		defer cancel()

		checks := map[string]string{}
		failed := false
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "error"
				failed = true
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks)
			responses.WriteError(r.Context(), nil, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
