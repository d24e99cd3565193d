package controllers

import (
	"context"
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type settingsService interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
	Update(ctx context.Context, input settings.UpdateInput) error
}

func ConfigGet(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// ConfigUpdate applies a partial update and returns the resulting snapshot.
func ConfigUpdate(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body settings.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Update(r.Context(), body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
