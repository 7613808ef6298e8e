package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/abduss/accounts/internal/security/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
}

// Authenticator resolves an access token to the account it was issued for.
type Authenticator struct {
	users  userFinder
	access *token.Codec
	log    *zap.Logger
}

// NewAuthenticator builds an Authenticator around the access-token codec.
func NewAuthenticator(users userFinder, access *token.Codec, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{users: users, access: access, log: log}
}

// Authenticate verifies accessToken and returns the sanitized user it names.
// Expired and forged tokens both fail with ErrTokenInvalid.
func (a *Authenticator) Authenticate(ctx context.Context, accessToken string) (User, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return User{}, newError(ErrTokenMissing, "unauthorized request")
	}

	claims, err := a.access.Verify(accessToken)
	if err != nil {
		a.log.Debug("access token rejected", zap.String("reason", verifyReason(err)))
		return User{}, newError(ErrTokenInvalid, "invalid access token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, newError(ErrTokenInvalid, "invalid access token")
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, newError(ErrTokenStale, "invalid access token")
		}
		return User{}, internalError("failed to look up user", err)
	}

	return user.SafeUser(), nil
}
