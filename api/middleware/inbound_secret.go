package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

const InboundSecretHeader = "X-Inbound-Secret"

// InboundSecret guards the mail relay hook with a shared secret. An empty
// secret disables the endpoint.
func InboundSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "inbound delivery disabled"))
				return
			}
			provided := r.Header.Get(InboundSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid inbound secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
