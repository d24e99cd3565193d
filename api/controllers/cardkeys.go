package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
)

type cardKeyService interface {
	GenerateBatch(ctx context.Context, input cardkeys.GenerateInput) (*cardkeys.GenerateResult, error)
	List(ctx context.Context, params pagination.Params, status string) (pagination.Page[cardkeys.KeyView], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func CardKeysGenerate(svc cardKeyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body cardkeys.GenerateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GenerateBatch(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CardKeysList(svc cardKeyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
		switch status {
		case "", cardkeys.StatusUsed, cardkeys.StatusUnused, cardkeys.StatusExpired:
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
				WithDetails(map[string]any{"field": "status", "allowed": []string{cardkeys.StatusUsed, cardkeys.StatusUnused, cardkeys.StatusExpired}}))
			return
		}

		page, err := svc.List(r.Context(), params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CardKeysDelete(svc cardKeyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDQuery(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": id})
	}
}
