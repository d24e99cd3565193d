package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
)

const maxSearchLength = 64

type userService interface {
	List(ctx context.Context, params pagination.Params, search string) (pagination.Page[users.UserDTO], error)
	UpdateRole(ctx context.Context, actorID uuid.UUID, input users.UpdateRoleInput) (*users.UserDTO, error)
	Delete(ctx context.Context, actorID, userID uuid.UUID) error
}

func UsersList(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		search := validators.SearchTerm(r, "search", maxSearchLength)

		page, err := svc.List(r.Context(), params, search)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func UsersUpdateRole(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body users.UpdateRoleInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpdateRole(r.Context(), actorID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func UsersDelete(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseUUIDQuery(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actorID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": userID})
	}
}
