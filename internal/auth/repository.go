package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const defaultQueryTimeout = 5 * time.Second

const userColumns = `id, username, email, fullname, avatar_url, password_hash, refresh_token, created_at, updated_at`

// PgxPool is the subset of *pgxpool.Pool used by Repository. It is also
// implemented by pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL access for user accounts.
type Repository struct {
	pool PgxPool
}

// NewRepository constructs a new Repository.
func NewRepository(pool PgxPool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new user record.
func (r *Repository) Insert(ctx context.Context, user User) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO users (id, username, email, fullname, avatar_url, password_hash, refresh_token)
VALUES ($1, $2, $3, $4, $5, $6, NULL)
RETURNING ` + userColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Fullname,
		user.AvatarURL,
		user.PasswordHash,
	)

	stored, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return stored, nil
}

// FindByID fetches a user by identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}

// FindByUsernameOrEmail fetches the user whose username or email matches.
// Both values are expected lower-cased.
func (r *Repository) FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
SELECT ` + userColumns + `
FROM users
WHERE username = $1 OR email = $2
ORDER BY created_at
LIMIT 1;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, username, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (r *Repository) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET refresh_token = $2, updated_at = NOW()
WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateRefreshToken replaces the stored refresh token only while it still
// equals expectedOld. The comparison and write happen in one statement so
// concurrent rotations of the same token cannot both succeed.
func (r *Repository) UpdateRefreshToken(ctx context.Context, id uuid.UUID, expectedOld, next string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET refresh_token = $3, updated_at = NOW()
WHERE id = $1 AND COALESCE(refresh_token, '') = $2;`

	tag, err := r.pool.Exec(ctx, query, id, expectedOld, next)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenMismatch
	}
	return nil
}

// ClearRefreshToken revokes the stored refresh token. Clearing an already
// empty token or an unknown user is not an error.
func (r *Repository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET refresh_token = NULL, updated_at = NOW()
WHERE id = $1 AND refresh_token IS NOT NULL;`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// UpdatePasswordHash stores a new password hash, optionally revoking the
// current refresh token in the same statement.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, revokeSessions bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET password_hash = $2,
    refresh_token = CASE WHEN $3 THEN NULL ELSE refresh_token END,
    updated_at = NOW()
WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, id, hash, revokeSessions)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateAccount changes the user's display name and email.
func (r *Repository) UpdateAccount(ctx context.Context, id uuid.UUID, fullname, email string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET fullname = $2, email = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, fullname, email))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return User{}, ErrUserNotFound
		case isUniqueViolation(err):
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("update account: %w", err)
	}
	return user, nil
}

// UpdateAvatar stores a new avatar URL.
func (r *Repository) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET avatar_url = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, avatarURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("update avatar: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user         User
		refreshToken *string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Fullname,
		&user.AvatarURL,
		&user.PasswordHash,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return User{}, err
	}
	if refreshToken != nil {
		user.RefreshToken = *refreshToken
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
