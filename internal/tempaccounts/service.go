package tempaccounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"gorm.io/gorm"
)

// Database exposes the read handle used for status lookups.
type Database interface {
	DB() *gorm.DB
}

// Service answers temp account status queries for the HTTP layer.
type Service struct {
	db  Database
	now func() time.Time
}

func NewService(database Database, now func() time.Time) (*Service, error) {
	if database == nil {
		return nil, fmt.Errorf("database required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{db: database, now: now}, nil
}

// Status reports the caller's temp account state.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	status, err := StatusFor(ctx, s.db.DB(), userID, s.now().UTC())
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load temp account")
	}
	return status, nil
}
