package tempaccounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes temp account persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a temp account repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the temp account row.
func (r *Repository) Create(ctx context.Context, account *models.TempAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindActiveByUser returns the user's active account, newest first, or nil.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.TempAccount, error) {
	var accounts []models.TempAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Limit(1).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// ListExpiredActive returns active accounts whose expiry passed before now.
func (r *Repository) ListExpiredActive(ctx context.Context, now time.Time) ([]models.TempAccount, error) {
	var accounts []models.TempAccount
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at < ?", true, now).
		Order("expires_at").
		Find(&accounts).Error
	return accounts, err
}

// CountExpiredActive counts the rows ListExpiredActive would return.
func (r *Repository) CountExpiredActive(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.TempAccount{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Count(&total).Error
	return total, err
}

// Deactivate clears is_active for the account.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.TempAccount{}).
		Where("id = ?", id).
		UpdateColumn("is_active", false).Error
}
