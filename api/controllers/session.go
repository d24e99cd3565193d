package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/api/middleware"
	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/api/validators"
	"github.com/xymail/xymail-backend/internal/auth"
	pkgAuth "github.com/xymail/xymail-backend/pkg/auth"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, accessID string) error
}

type tokenRefresher interface {
	Refresh(ctx context.Context, accessID string, userID uuid.UUID, refreshToken string) (*auth.Tokens, error)
}

// AuthLogout revokes the refresh mapping tied to the presented access token.
func AuthLogout(manager sessionRevoker, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		claims, err := expiredOKClaims(r, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := manager.Revoke(r.Context(), claims.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh rotates the refresh token and issues a new access token. The
// presented access token may be expired; its jti locates the session.
func AuthRefresh(svc tokenRefresher, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claims, err := expiredOKClaims(r, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens, err := svc.Refresh(r.Context(), claims.ID, claims.UserID, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tokens)
	}
}

func expiredOKClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, token)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}
