package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteError renders err as the error envelope. Untyped errors become
// INTERNAL with the generic public message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeRateLimit:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := Failure{
		Error: FailureDetail{
			Code:    string(typed.Code()),
			Message: msg,
		},
		RequestID: w.Header().Get(requestIDHeader),
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		if meta.HTTPStatus >= http.StatusInternalServerError {
			dump := pkgerrors.Dump(err)
			ctx = logg.WithFields(ctx, map[string]any{
				"error":         dump.TopMessage,
				"error_code":    dump.Code,
				"error_chain":   dump.Chain,
				"pg_code":       dump.PGCode,
				"pg_detail":     dump.PGDetail,
				"pg_message":    dump.PGMessage,
				"pg_table":      dump.PGTable,
				"pg_constraint": dump.PGConstraint,
			})
			logg.Error(ctx, "request.error", err)
		} else {
			ctx = logg.WithFields(ctx, map[string]any{
				"error_code": string(typed.Code()),
				"status":     meta.HTTPStatus,
			})
			logg.Debug(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
