package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account entity. Temp users carry no password and hold the
// temp_user role plus an active TempAccount.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username     *string    `gorm:"column:username;uniqueIndex"`
	Name         string     `gorm:"column:name;not null"`
	Email        *string    `gorm:"column:email;uniqueIndex"`
	PasswordHash *string    `gorm:"column:password_hash"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
