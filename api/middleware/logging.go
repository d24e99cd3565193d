package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xymail/xymail-backend/pkg/logger"
)

// quietPrefixes are polled by orchestrators and scrapers; successful hits
// are not logged.
var quietPrefixes = []string{"/health", "/metrics"}

// Logging writes one access line per request once the handler returns.
// 5xx responses log at warn level, since the handler already logged the
// cause through responses.WriteError.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < http.StatusBadRequest && quiet(r.URL.Path) {
				return
			}

			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"route":       routePattern(r),
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if status >= http.StatusBadRequest {
				logg.Warn(ctx, "request failed")
				return
			}
			logg.Info(ctx, "request served")
		})
	}
}

// routePattern prefers the matched chi pattern so ids and mailbox addresses
// in the path do not end up in logs.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func quiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
