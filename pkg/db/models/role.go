package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/enums"
	"gorm.io/gorm"
)

// Role is a named permission bundle.
type Role struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name        enums.Role `gorm:"column:name;not null;uniqueIndex"`
	Description string     `gorm:"column:description;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *Role) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// UserRole binds a user to their single role.
type UserRole struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
