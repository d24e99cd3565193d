// Package tempaccounts tracks the time-limited accounts created by card key activation.
package tempaccounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Status describes the caller's temp account state.
type Status struct {
	IsTemp       bool       `json:"isTemp"`
	EmailAddress string     `json:"emailAddress,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Restriction returns the account confining userID at now, or nil when the
// user is unrestricted.
func Restriction(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (*models.TempAccount, error) {
	account, err := NewRepository(db).FindActiveByUser(ctx, userID)
	if err != nil || account == nil {
		return nil, err
	}
	if !account.Restricts(now) {
		return nil, nil
	}
	return account, nil
}

// StatusFor reports whether userID is currently a restricted temp user.
func StatusFor(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (Status, error) {
	account, err := Restriction(ctx, db, userID, now)
	if err != nil {
		return Status{}, err
	}
	if account == nil {
		return Status{}, nil
	}
	expiresAt := account.ExpiresAt
	return Status{IsTemp: true, EmailAddress: account.EmailAddress, ExpiresAt: &expiresAt}, nil
}

// HasLapsed reports whether userID has an active account that has expired or
// only deactivated accounts. Such users may no longer sign in.
func HasLapsed(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (bool, error) {
	account, err := NewRepository(db).FindActiveByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if account != nil {
		return !account.Restricts(now), nil
	}
	var inactive int64
	err = db.WithContext(ctx).Model(&models.TempAccount{}).
		Where("user_id = ? AND is_active = ?", userID, false).
		Count(&inactive).Error
	return inactive > 0, err
}
