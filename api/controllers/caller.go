package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/middleware"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
)

func callerID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return id, nil
}
