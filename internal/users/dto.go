package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    *string    `json:"username,omitempty"`
	Name        string     `json:"name"`
	Email       *string    `json:"email,omitempty"`
	Role        enums.Role `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     *string
	Name         string
	Email        *string
	PasswordHash *string
}

func FromModel(u *models.User, role enums.Role) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     c.Username,
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		IsActive:     true,
	}
}
