package cardkeys

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	StatusUsed    = "used"
	StatusUnused  = "unused"
	StatusExpired = "expired"
)

const insertBatchSize = 100

// Repository exposes card key persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a card key repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBatch inserts all keys in batched INSERT statements.
func (r *Repository) CreateBatch(ctx context.Context, keys []models.CardKey) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&keys, insertBatchSize).Error
}

// FindByCode loads a key by its code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.CardKey, error) {
	var key models.CardKey
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// FindByCodeForUpdate loads a key and locks the row for the enclosing transaction.
func (r *Repository) FindByCodeForUpdate(ctx context.Context, code string) (*models.CardKey, error) {
	var key models.CardKey
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("code = ?", code).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// FindByID loads a key by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CardKey, error) {
	var key models.CardKey
	if err := r.db.WithContext(ctx).First(&key, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// BoundAddresses returns which of the supplied addresses already have a key.
func (r *Repository) BoundAddresses(ctx context.Context, addresses []string) ([]string, error) {
	var bound []string
	if len(addresses) == 0 {
		return bound, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.CardKey{}).
		Where("email_address IN ?", addresses).
		Order("email_address").
		Pluck("email_address", &bound).Error
	return bound, err
}

// MarkUsed flips an unused key to used. It reports false when the key was
// already consumed.
func (r *Repository) MarkUsed(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CardKey{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used": true,
			"used_by": userID,
			"used_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ResetForUser returns every key consumed by userID to the unused state.
func (r *Repository) ResetForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CardKey{}).
		Where("used_by = ?", userID).
		Updates(map[string]any{
			"is_used": false,
			"used_by": nil,
			"used_at": nil,
		})
	return res.RowsAffected, res.Error
}

// Delete removes a key by id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CardKey{}).Error
}

// DeleteExpired removes keys past expiry with the given usage state.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time, used bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND is_used = ?", now, used).
		Delete(&models.CardKey{})
	return res.RowsAffected, res.Error
}

// Count returns the total number of keys.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CardKey{}).Count(&total).Error
	return total, err
}

// CountExpired returns the number of keys past expiry.
func (r *Repository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CardKey{}).Where("expires_at < ?", now).Count(&total).Error
	return total, err
}

// ListRow is a card key joined with the user that consumed it.
type ListRow struct {
	models.CardKey `gorm:"embedded"`
	UsedByUsername *string `gorm:"column:used_by_username"`
	UsedByName     *string `gorm:"column:used_by_name"`
}

// List returns a page of keys, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, params pagination.Params, status string, now time.Time) ([]ListRow, int64, error) {
	params = params.Normalize()
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.CardKey{})
		switch status {
		case StatusUsed:
			q = q.Where("card_keys.is_used = ?", true)
		case StatusUnused:
			q = q.Where("card_keys.is_used = ? AND card_keys.expires_at >= ?", false, now)
		case StatusExpired:
			q = q.Where("card_keys.expires_at < ?", now)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ListRow
	err := filtered().
		Select("card_keys.*, users.username AS used_by_username, users.name AS used_by_name").
		Joins("LEFT JOIN users ON users.id = card_keys.used_by").
		Order("card_keys.created_at DESC, card_keys.id").
		Limit(params.Limit).
		Offset(params.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
