package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/activation"
	"github.com/xymail/xymail-backend/internal/auth"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type cardKeyValidator interface {
	Validate(ctx context.Context, code string) (*models.CardKey, error)
}

type activator interface {
	Activate(ctx context.Context, code string) (*activation.Result, error)
}

type tokenIssuer interface {
	IssueTokens(ctx context.Context, userID uuid.UUID, role enums.Role) (*auth.Tokens, error)
}

type activateRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type activateResponse struct {
	UserID               uuid.UUID `json:"userId"`
	EmailAddress         string    `json:"emailAddress"`
	ExpiresAt            time.Time `json:"expiresAt"`
	AccessToken          string    `json:"accessToken"`
	RefreshToken         string    `json:"refreshToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// Activate redeems a card key and signs the new temp user in.
func Activate(keys cardKeyValidator, svc activator, tokens tokenIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if keys == nil || svc == nil || tokens == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation unavailable"))
			return
		}

		var body activateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := cardkeys.NormalizeCode(body.Code)
		if !cardkeys.IsCodeFormat(code) {
			responses.WriteError(r.Context(), logg, w, cardkeys.ErrCardKeyNotFound)
			return
		}

		if _, err := keys.Validate(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Activate(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issued, err := tokens.IssueTokens(r.Context(), result.UserID, enums.RoleTempUser)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, activateResponse{
			UserID:               result.UserID,
			EmailAddress:         result.EmailAddress,
			ExpiresAt:            result.ExpiresAt,
			AccessToken:          issued.AccessToken,
			RefreshToken:         issued.RefreshToken,
			AccessTokenExpiresAt: issued.ExpiresAt,
		})
	}
}
