package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TempAccount links an activated card key to the user it produced. UserID is
// cleared when the user is swept and CardKeyID when the key is purged; the
// account row outlives both.
type TempAccount struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID `gorm:"type:uuid;column:user_id"`
	CardKeyID    *uuid.UUID `gorm:"type:uuid;column:card_key_id"`
	EmailAddress string     `gorm:"column:email_address;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
}

func (t *TempAccount) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Restricts reports whether the account still confines its user to one address.
func (t TempAccount) Restricts(now time.Time) bool {
	return t.IsActive && !t.ExpiresAt.Before(now)
}
