package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abduss/accounts/internal/security/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFinder struct{ err error }

func (f failingFinder) FindByID(context.Context, uuid.UUID) (User, error) {
	return User{}, f.err
}

func TestAuthenticateSuccess(t *testing.T) {
	env := newTestEnv(t)
	bob, result := env.registerAndLogin(t)

	user, err := env.service.Authenticator().Authenticate(context.Background(), result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, user.ID)
	assert.Equal(t, "bob@x.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.Empty(t, user.RefreshToken)
}

func TestAuthenticateMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Authenticator().Authenticate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTokenMissing)
}

func TestAuthenticateInvalid(t *testing.T) {
	env := newTestEnv(t)
	_, result := env.registerAndLogin(t)
	authenticator := env.service.Authenticator()

	// refresh tokens are signed with a different secret
	_, err := authenticator.Authenticate(context.Background(), result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = authenticator.Authenticate(context.Background(), result.Tokens.AccessToken+"tampered")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	env.clock.Advance(16 * time.Minute)
	_, err = authenticator.Authenticate(context.Background(), result.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, "invalid access token", Message(err))
}

func TestAuthenticateNonUUIDSubject(t *testing.T) {
	codec, err := token.NewCodec("access-secret", time.Minute, nil)
	require.NoError(t, err)
	raw, _, err := codec.Sign(token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"}})
	require.NoError(t, err)

	authenticator := NewAuthenticator(NewMemoryRepository(), codec, nil)
	_, err = authenticator.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAuthenticateStale(t *testing.T) {
	codec, err := token.NewCodec("access-secret", time.Minute, nil)
	require.NoError(t, err)
	raw, _, err := codec.Sign(token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}})
	require.NoError(t, err)

	authenticator := NewAuthenticator(NewMemoryRepository(), codec, nil)
	_, err = authenticator.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenStale)

	broken := NewAuthenticator(failingFinder{err: errors.New("db down")}, codec, nil)
	_, err = broken.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInternal)
}
