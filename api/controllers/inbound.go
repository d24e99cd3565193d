package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/xymail/xymail-backend/api/responses"
	"github.com/xymail/xymail-backend/internal/messages"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type mailDeliverer interface {
	Deliver(ctx context.Context, raw io.Reader) (*messages.DeliveryResult, error)
}

// InboundDeliver accepts a raw RFC 822 message from the mail relay.
func InboundDeliver(svc mailDeliverer, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := io.Reader(r.Body)
		if maxBytes > 0 {
			body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		result, err := svc.Deliver(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}
