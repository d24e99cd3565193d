package middleware

import (
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/internal/rbac"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

// RequirePermission rejects callers whose token role does not grant permission.
// It must run after Auth.
func RequirePermission(permission enums.Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if !rbac.HasPermission([]enums.Role{role}, permission) {
				err := pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions").
					WithDetails(map[string]string{"permission": string(permission)})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
