package emails

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes email address persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an emails repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the email row.
func (r *Repository) Create(ctx context.Context, email *models.Email) error {
	return r.db.WithContext(ctx).Create(email).Error
}

// FindByID loads an email by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Email, error) {
	var email models.Email
	if err := r.db.WithContext(ctx).First(&email, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &email, nil
}

// FindByAddress loads an email by its address.
func (r *Repository) FindByAddress(ctx context.Context, address string) (*models.Email, error) {
	var email models.Email
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&email).Error; err != nil {
		return nil, err
	}
	return &email, nil
}

// ListFilter narrows ListForUser.
type ListFilter struct {
	UserID uuid.UUID
	// Address, when set, limits the result to that single address.
	Address string
	Now     time.Time
}

// ListForUser returns a page of the user's unexpired emails, newest first.
func (r *Repository) ListForUser(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Email, int64, error) {
	params = params.Normalize()
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Email{}).
			Where("user_id = ? AND expires_at > ?", filter.UserID, filter.Now)
		if filter.Address != "" {
			q = q.Where("address = ?", filter.Address)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Email
	err := query().
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	return rows, total, err
}

// CountActiveForUser counts the user's unexpired emails.
func (r *Repository) CountActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&total).Error
	return total, err
}

// OwnedEmail is an email joined with its owner's role.
type OwnedEmail struct {
	models.Email `gorm:"embedded"`
	OwnerRole    *enums.Role `gorm:"column:owner_role"`
}

// EffectiveOwnerRole returns the owner's role, civilian when none is assigned.
func (o OwnedEmail) EffectiveOwnerRole() enums.Role {
	if o.OwnerRole == nil || *o.OwnerRole == "" {
		return enums.RoleCivilian
	}
	return *o.OwnerRole
}

// ListByAddressesWithOwner returns the existing rows among addresses.
func (r *Repository) ListByAddressesWithOwner(ctx context.Context, addresses []string) ([]OwnedEmail, error) {
	var rows []OwnedEmail
	if len(addresses) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Select("emails.*, roles.name AS owner_role").
		Joins("LEFT JOIN user_roles ON user_roles.user_id = emails.user_id").
		Joins("LEFT JOIN roles ON roles.id = user_roles.role_id").
		Where("emails.address IN ?", addresses).
		Order("emails.address").
		Scan(&rows).Error
	return rows, err
}

// ListActiveByAddresses returns unexpired rows among addresses.
func (r *Repository) ListActiveByAddresses(ctx context.Context, addresses []string, now time.Time) ([]models.Email, error) {
	var rows []models.Email
	if len(addresses) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("address IN ? AND expires_at > ?", addresses, now).
		Find(&rows).Error
	return rows, err
}

// DeleteByIDs removes the emails; messages cascade.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Email{})
	return res.RowsAffected, res.Error
}

// DeleteExpired removes every email past expiry; messages cascade.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.Email{})
	return res.RowsAffected, res.Error
}
