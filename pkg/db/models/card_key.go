package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardKey is a single-use activation code bound to one address.
type CardKey struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"column:code;not null;uniqueIndex"`
	EmailAddress string     `gorm:"column:email_address;not null;uniqueIndex"`
	BatchID      string     `gorm:"column:batch_id;not null"`
	IsUsed       bool       `gorm:"column:is_used;not null"`
	UsedBy       *uuid.UUID `gorm:"type:uuid;column:used_by"`
	UsedAt       *time.Time `gorm:"column:used_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null"`
}

func (c *CardKey) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// IsExpired reports whether the key can no longer be activated at now.
func (c CardKey) IsExpired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
