package messages

import (
	"context"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes message persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a messages repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateMany inserts the messages.
func (r *Repository) CreateMany(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&msgs).Error
}

// ListByEmail returns a page of messages for an email, newest first.
func (r *Repository) ListByEmail(ctx context.Context, emailID uuid.UUID, params pagination.Params) ([]models.Message, int64, error) {
	params = params.Normalize()
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("email_id = ?", emailID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Order("received_at DESC, id").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	return rows, total, err
}
