package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "username", "email", "fullname", "avatar_url", "password_hash", "refresh_token", "created_at", "updated_at"}

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestRepositoryInsert(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	user := User{ID: uuid.New(), Username: "bob", Email: "bob@x.com", Fullname: "Bob", AvatarURL: "https://a/b.png", PasswordHash: "hash"}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Email, user.Fullname, user.AvatarURL, user.PasswordHash).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(user.ID, user.Username, user.Email, user.Fullname, user.AvatarURL, user.PasswordHash, (*string)(nil), now, now))

	stored, err := repo.Insert(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Empty(t, stored.RefreshToken)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Email, user.Fullname, user.AvatarURL, user.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Insert(context.Background(), user)
	assert.ErrorIs(t, err, ErrUserExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByUsernameOrEmail(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	now := time.Now()
	token := "refresh-token"

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1 OR email = \$2`).
		WithArgs("bob", "bob").
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "bob", "bob@x.com", "Bob", "https://a/b.png", "hash", &token, now, now))

	user, err := repo.FindByUsernameOrEmail(context.Background(), "bob", "bob")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, token, user.RefreshToken)

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1 OR email = \$2`).
		WithArgs("carol", "carol").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindByUsernameOrEmail(context.Background(), "carol", "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateRefreshTokenIsConditional(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET refresh_token = \$3, updated_at = NOW\(\) WHERE id = \$1 AND COALESCE\(refresh_token, ''\) = \$2`).
		WithArgs(id, "old", "new").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateRefreshToken(context.Background(), id, "old", "new"))

	mock.ExpectExec(`UPDATE users SET refresh_token = \$3`).
		WithArgs(id, "old", "newer").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.UpdateRefreshToken(context.Background(), id, "old", "newer")
	assert.ErrorIs(t, err, ErrTokenMismatch)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetAndClearRefreshToken(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(id, "token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.SetRefreshToken(context.Background(), id, "token"))

	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(id, "token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.SetRefreshToken(context.Background(), id, "token"), ErrUserNotFound)

	// clearing twice is fine even though the second call touches no rows
	mock.ExpectExec(`UPDATE users SET refresh_token = NULL`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET refresh_token = NULL`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), id))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), id))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdatePasswordHash(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
		WithArgs(id, "hash", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdatePasswordHash(context.Background(), id, "hash", true))

	mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
		WithArgs(id, "hash", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), id, "hash", false), ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateAccountConflict(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE users SET fullname = \$2, email = \$3`).
		WithArgs(id, "Bob", "taken@x.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.UpdateAccount(context.Background(), id, "Bob", "taken@x.com")
	assert.ErrorIs(t, err, ErrUserExists)

	mock.ExpectQuery(`UPDATE users SET avatar_url = \$2`).
		WithArgs(id, "https://a/c.png").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.UpdateAvatar(context.Background(), id, "https://a/c.png")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
