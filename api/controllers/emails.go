package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/middleware"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/messages"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
)

type emailService interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[emails.EmailDTO], error)
	Create(ctx context.Context, userID uuid.UUID, role enums.Role, input emails.CreateInput) (*emails.EmailDTO, error)
	Owned(ctx context.Context, userID, emailID uuid.UUID) (*models.Email, error)
}

type messageLister interface {
	List(ctx context.Context, emailID uuid.UUID, params pagination.Params) (pagination.Page[messages.MessageDTO], error)
}

func EmailsList(svc emailService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func EmailsCreate(svc emailService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body emails.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email, err := svc.Create(r.Context(), userID, middleware.RoleFromContext(r.Context()), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, email)
	}
}

// EmailMessages lists messages of an email the caller owns or is bound to.
func EmailMessages(svc emailService, inbox messageLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		emailID, err := validators.ParseUUIDParam(chi.URLParam(r, "emailId"), "emailId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.Owned(r.Context(), userID, emailID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := inbox.List(r.Context(), emailID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
