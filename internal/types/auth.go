package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserAuth is the subset of the users table needed for authentication.
type UserAuth struct {
	ID        string
	Username  string
	Email     string
	Password  string // bcrypt hash
	Provider  string
	CreatedAt time.Time
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"usr,omitempty"`
	Email    string `json:"eml"`
	jwt.RegisteredClaims
}

// PasswordReset is a single-use password reset token row.
type PasswordReset struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
}
