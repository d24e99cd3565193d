package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type tempStatusService interface {
	Status(ctx context.Context, userID uuid.UUID) (tempaccounts.Status, error)
}

func TempAccountStatus(svc tempStatusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Status(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
