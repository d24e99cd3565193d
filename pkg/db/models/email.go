package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Email is a disposable address owned by a user. Deleting it removes its messages.
type Email struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Address   string    `gorm:"column:address;not null;uniqueIndex"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (e *Email) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// IsExpired reports whether the address stopped receiving mail at now.
func (e Email) IsExpired(now time.Time) bool {
	return e.ExpiresAt.Before(now)
}
