package auth

import (
	"time"

	"github.com/xymail/xymail-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// RefreshRequest carries the refresh token paired with the presented access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Tokens is an access token plus its refresh token.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"accessTokenExpiresAt"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	Tokens
	User *users.UserDTO `json:"user"`
}
