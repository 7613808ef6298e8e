package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application account.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Fullname     string
	AvatarURL    string
	PasswordHash string
	// RefreshToken is the single refresh token currently accepted for this
	// user; empty once the user logs out.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser removes credential material for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}

// TokenPair bundles access and refresh tokens.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// AuthResult contains user and token information.
type AuthResult struct {
	User   User
	Tokens TokenPair
}
