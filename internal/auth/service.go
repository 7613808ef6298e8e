package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/accounts/internal/clock"
	"github.com/abduss/accounts/internal/config"
	"github.com/abduss/accounts/internal/metrics"
	"github.com/abduss/accounts/internal/security/password"
	"github.com/abduss/accounts/internal/security/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserStore abstracts the persistence layer.
type UserStore interface {
	Insert(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, expectedOld, next string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, revokeSessions bool) error
	UpdateAccount(ctx context.Context, id uuid.UUID, fullname, email string) (User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (User, error)
}

// AvatarUploader is implemented by the avatar package backends.
type AvatarUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Service manages registration and the access/refresh session lifecycle.
type Service struct {
	store                  UserStore
	avatars                AvatarUploader
	hasher                 *password.Hasher
	access                 *token.Codec
	refresh                *token.Codec
	revokeOnPasswordChange bool
	log                    *zap.Logger
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock  clock.Clock
	logger *zap.Logger
}

// WithClock overrides the time source used for token expiry.
func WithClock(c clock.Clock) Option {
	return func(o *serviceOptions) { o.clock = c }
}

// WithLogger sets the logger used for diagnostic events.
func WithLogger(l *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// NewService creates a Service. It fails only on invalid configuration.
func NewService(store UserStore, avatars AvatarUploader, cfg config.AuthConfig, opts ...Option) (*Service, error) {
	o := serviceOptions{clock: clock.System, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.AccessTokenSecret != "" && cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	access, err := token.NewCodec(cfg.AccessTokenSecret, cfg.AccessTokenTTL, o.clock)
	if err != nil {
		return nil, fmt.Errorf("access token codec: %w", err)
	}
	refresh, err := token.NewCodec(cfg.RefreshTokenSecret, cfg.RefreshTokenTTL, o.clock)
	if err != nil {
		return nil, fmt.Errorf("refresh token codec: %w", err)
	}

	return &Service{
		store:                  store,
		avatars:                avatars,
		hasher:                 hasher,
		access:                 access,
		refresh:                refresh,
		revokeOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
		log:                    o.logger,
	}, nil
}

// SessionTTLs reports the configured access and refresh token lifetimes.
func (s *Service) SessionTTLs() (access, refresh time.Duration) {
	return s.access.TTL(), s.refresh.TTL()
}

// Authenticator returns a request authenticator sharing this service's
// store and access-token codec.
func (s *Service) Authenticator() *Authenticator {
	return NewAuthenticator(s.store, s.access, s.log)
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Fullname   string
	Email      string
	Username   string
	Password   string
	AvatarPath string
}

// LoginInput carries login credentials. Identifier is matched against both
// username and email. When it is empty, Username and Email are matched
// against their own columns and either may find the account.
type LoginInput struct {
	Identifier string
	Username   string
	Email      string
	Password   string
}

// Register creates a new account. It does not issue tokens.
func (s *Service) Register(ctx context.Context, input RegisterInput) (user User, err error) {
	defer func() { metrics.RecordAuth("register", err) }()

	fullname := strings.TrimSpace(input.Fullname)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if fullname == "" || email == "" || username == "" || strings.TrimSpace(input.Password) == "" {
		return User{}, newError(ErrValidation, "all fields are required")
	}
	if len(input.Password) > password.MaxLength {
		return User{}, newError(ErrValidation, fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}

	if _, err := s.store.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return User{}, newError(ErrConflict, "user with email or username already exists")
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, internalError("failed to check existing users", err)
	}

	avatarURL, err := s.uploadAvatar(ctx, input.AvatarPath)
	if err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, internalError("failed to hash password", err)
	}

	created, err := s.store.Insert(ctx, User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		Fullname:     fullname,
		AvatarURL:    avatarURL,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return User{}, newError(ErrConflict, "user with email or username already exists")
		}
		return User{}, internalError("failed to create user", err)
	}

	s.log.Info("user registered", zap.String("user_id", created.ID.String()))
	return created.SafeUser(), nil
}

// Login verifies credentials and starts a new session. Any previously issued
// refresh token for the user stops being accepted.
func (s *Service) Login(ctx context.Context, input LoginInput) (result AuthResult, err error) {
	defer func() { metrics.RecordAuth("login", err) }()

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if identifier := strings.ToLower(strings.TrimSpace(input.Identifier)); identifier != "" {
		username, email = identifier, identifier
	}
	if username == "" && email == "" {
		return AuthResult{}, newError(ErrValidation, "username or email is required")
	}

	user, err := s.store.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, newError(ErrNotFound, "user does not exist")
		}
		return AuthResult{}, internalError("failed to look up user", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return AuthResult{}, newError(ErrUnauthorized, "invalid user credentials")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return AuthResult{}, internalError("failed to store refresh token", err)
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return AuthResult{User: user.SafeUser(), Tokens: tokens}, nil
}

// Rotate exchanges the current refresh token for a new token pair. The
// presented token must be exactly the one stored for its user; it is
// superseded atomically, so a token can be rotated at most once.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { metrics.RecordAuth("rotate", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, newError(ErrUnauthorized, "unauthorized request")
	}

	claims, err := s.refresh.Verify(refreshToken)
	if err != nil {
		s.log.Debug("refresh token rejected", zap.String("reason", verifyReason(err)))
		return TokenPair{}, newError(ErrUnauthorized, "invalid refresh token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return TokenPair{}, newError(ErrUnauthorized, "invalid refresh token")
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, newError(ErrUnauthorized, "invalid refresh token")
		}
		return TokenPair{}, internalError("failed to look up user", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		s.log.Warn("superseded refresh token presented", zap.String("user_id", user.ID.String()))
		return TokenPair{}, newError(ErrUnauthorized, "refresh token is expired or used")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.store.UpdateRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken); err != nil {
		if errors.Is(err, ErrTokenMismatch) {
			s.log.Warn("concurrent refresh token rotation lost", zap.String("user_id", user.ID.String()))
			return TokenPair{}, newError(ErrUnauthorized, "refresh token is expired or used")
		}
		return TokenPair{}, internalError("failed to store refresh token", err)
	}

	return tokens, nil
}

// Logout revokes the user's refresh token. It is idempotent.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { metrics.RecordAuth("logout", err) }()

	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		return internalError("failed to clear refresh token", err)
	}
	s.log.Info("user logged out", zap.String("user_id", userID.String()))
	return nil
}

// ChangePassword replaces the password after verifying the old one. Existing
// sessions survive unless the service was configured to revoke them.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) (err error) {
	defer func() { metrics.RecordAuth("change_password", err) }()

	if strings.TrimSpace(newPassword) == "" {
		return newError(ErrValidation, "new password is required")
	}
	if len(newPassword) > password.MaxLength {
		return newError(ErrValidation, fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return newError(ErrUnauthorized, "invalid old password")
		}
		return internalError("failed to look up user", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return newError(ErrUnauthorized, "invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("failed to hash password", err)
	}

	if err := s.store.UpdatePasswordHash(ctx, userID, hash, s.revokeOnPasswordChange); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return newError(ErrUnauthorized, "invalid old password")
		}
		return internalError("failed to update password", err)
	}

	s.log.Info("password changed",
		zap.String("user_id", userID.String()),
		zap.Bool("sessions_revoked", s.revokeOnPasswordChange),
	)
	return nil
}

// CurrentUser returns the sanitized account for userID.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, newError(ErrNotFound, "user does not exist")
		}
		return User{}, internalError("failed to look up user", err)
	}
	return user.SafeUser(), nil
}

// UpdateAccount changes the display name and email of an account.
func (s *Service) UpdateAccount(ctx context.Context, userID uuid.UUID, fullname, email string) (User, error) {
	fullname = strings.TrimSpace(fullname)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullname == "" || email == "" {
		return User{}, newError(ErrValidation, "all fields are required")
	}

	user, err := s.store.UpdateAccount(ctx, userID, fullname, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			return User{}, newError(ErrConflict, "email already in use")
		case errors.Is(err, ErrUserNotFound):
			return User{}, newError(ErrNotFound, "user does not exist")
		}
		return User{}, internalError("failed to update account", err)
	}
	return user.SafeUser(), nil
}

// UpdateAvatar uploads a new avatar image and stores its URL.
func (s *Service) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) (User, error) {
	avatarURL, err := s.uploadAvatar(ctx, avatarPath)
	if err != nil {
		return User{}, err
	}

	user, err := s.store.UpdateAvatar(ctx, userID, avatarURL)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, newError(ErrNotFound, "user does not exist")
		}
		return User{}, internalError("failed to update avatar", err)
	}
	return user.SafeUser(), nil
}

func (s *Service) uploadAvatar(ctx context.Context, avatarPath string) (string, error) {
	if strings.TrimSpace(avatarPath) == "" {
		return "", newError(ErrDependency, "avatar is required")
	}
	if s.avatars == nil {
		return "", newError(ErrDependency, "avatar storage is not configured")
	}

	url, err := s.avatars.Upload(ctx, avatarPath)
	if err != nil {
		s.log.Warn("avatar upload failed", zap.Error(err))
		return "", &Error{Kind: ErrDependency, Message: "error while uploading avatar", Err: err}
	}
	if url == "" {
		return "", newError(ErrDependency, "error while uploading avatar")
	}
	return url, nil
}

func (s *Service) issueTokens(user User) (TokenPair, error) {
	accessToken, accessExpiry, err := s.access.Sign(token.Claims{
		Email:            user.Email,
		Username:         user.Username,
		Fullname:         user.Fullname,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
	})
	if err != nil {
		return TokenPair{}, internalError("failed to generate access token", err)
	}

	refreshToken, refreshExpiry, err := s.refresh.Sign(token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
	})
	if err != nil {
		return TokenPair{}, internalError("failed to generate refresh token", err)
	}

	return TokenPair{
		AccessToken:        accessToken,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       refreshToken,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

func verifyReason(err error) string {
	if errors.Is(err, token.ErrExpired) {
		return "expired"
	}
	return "invalid"
}
