package messages

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/pkg/db/models"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Database is the slice of *db.Client the service needs.
type Database interface {
	DB() *gorm.DB
}

// DeliveryResult reports where an inbound message was stored.
type DeliveryResult struct {
	Stored     int      `json:"stored"`
	Recipients []string `json:"recipients"`
}

// Service stores relayed mail and lists stored messages.
type Service struct {
	db   Database
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the messages service.
func NewService(database Database, logg *logger.Logger, now func() time.Time) (*Service, error) {
	if database == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{db: database, logg: logg, now: now}, nil
}

// Deliver parses raw and stores one message row per matching address.
// Messages with no active recipient are dropped without error.
func (s *Service) Deliver(ctx context.Context, raw io.Reader) (*DeliveryResult, error) {
	parsed, err := Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed message")
	}
	now := s.now().UTC()
	targets, err := emails.NewRepository(s.db.DB()).ListActiveByAddresses(ctx, parsed.Recipients, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve recipients")
	}

	received := now
	rows := make([]models.Message, 0, len(targets))
	result := &DeliveryResult{Recipients: make([]string, 0, len(targets))}
	for _, target := range targets {
		rows = append(rows, models.Message{
			EmailID:     target.ID,
			FromAddress: parsed.From,
			Subject:     parsed.Subject,
			Content:     parsed.Text,
			HTML:        parsed.HTML,
			ReceivedAt:  received,
		})
		result.Recipients = append(result.Recipients, target.Address)
	}
	if err := NewRepository(s.db.DB()).CreateMany(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store messages")
	}
	result.Stored = len(rows)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"from":       parsed.From,
		"recipients": len(parsed.Recipients),
		"stored":     result.Stored,
	})
	s.logg.Info(logCtx, "inbound message processed")
	return result, nil
}

// MessageDTO is the transport shape of a stored message.
type MessageDTO struct {
	ID          uuid.UUID `json:"id"`
	FromAddress string    `json:"fromAddress"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	HTML        string    `json:"html,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// List returns a page of messages for an email the caller was cleared to read.
func (s *Service) List(ctx context.Context, emailID uuid.UUID, params pagination.Params) (pagination.Page[MessageDTO], error) {
	rows, total, err := NewRepository(s.db.DB()).ListByEmail(ctx, emailID, params)
	if err != nil {
		return pagination.Page[MessageDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}
	out := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, MessageDTO{
			ID:          row.ID,
			FromAddress: row.FromAddress,
			Subject:     row.Subject,
			Content:     row.Content,
			HTML:        row.HTML,
			ReceivedAt:  row.ReceivedAt,
		})
	}
	return pagination.NewPage(out, params, total), nil
}
