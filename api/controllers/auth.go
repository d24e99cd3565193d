package controllers

import (
	"context"
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/auth"
	"github.com/xymail/xymail-backend/internal/users"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type loginService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

type registerService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error)
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc loginService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AuthRegister creates a password account. Tokens are obtained by logging in.
func AuthRegister(svc registerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "register service unavailable"))
			return
		}

		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}
