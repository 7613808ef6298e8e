package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process user store. It backs the memory storage
// driver and the package tests, and honours the same conditional-update
// contract as Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
	now   func() time.Time
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[uuid.UUID]User),
		now:   time.Now,
	}
}

// Insert adds a user, rejecting a taken username or email.
func (m *MemoryRepository) Insert(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return User{}, ErrUserExists
		}
	}
	if _, ok := m.users[user.ID]; ok {
		return User{}, ErrUserExists
	}

	now := m.now()
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

// FindByID fetches a user by identifier.
func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// FindByUsernameOrEmail returns the oldest user matching either value.
func (m *MemoryRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found User
		ok    bool
	)
	for _, user := range m.users {
		if user.Username != username && user.Email != email {
			continue
		}
		if !ok || user.CreatedAt.Before(found.CreatedAt) {
			found, ok = user, true
		}
	}
	if !ok {
		return User{}, ErrUserNotFound
	}
	return found, nil
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (m *MemoryRepository) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	return m.update(id, func(u *User) error {
		u.RefreshToken = token
		return nil
	})
}

// UpdateRefreshToken swaps the refresh token only while it equals expectedOld.
func (m *MemoryRepository) UpdateRefreshToken(_ context.Context, id uuid.UUID, expectedOld, next string) error {
	err := m.update(id, func(u *User) error {
		if u.RefreshToken != expectedOld {
			return ErrTokenMismatch
		}
		u.RefreshToken = next
		return nil
	})
	if err == ErrUserNotFound {
		return ErrTokenMismatch
	}
	return err
}

// ClearRefreshToken revokes the stored refresh token. It never fails.
func (m *MemoryRepository) ClearRefreshToken(_ context.Context, id uuid.UUID) error {
	_ = m.update(id, func(u *User) error {
		u.RefreshToken = ""
		return nil
	})
	return nil
}

// UpdatePasswordHash stores a new password hash.
func (m *MemoryRepository) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string, revokeSessions bool) error {
	return m.update(id, func(u *User) error {
		u.PasswordHash = hash
		if revokeSessions {
			u.RefreshToken = ""
		}
		return nil
	})
}

// UpdateAccount changes the user's display name and email.
func (m *MemoryRepository) UpdateAccount(_ context.Context, id uuid.UUID, fullname, email string) (User, error) {
	var updated User
	err := m.update(id, func(u *User) error {
		for otherID, other := range m.users {
			if otherID != id && other.Email == email {
				return ErrUserExists
			}
		}
		u.Fullname = fullname
		u.Email = email
		updated = *u
		return nil
	})
	return updated, err
}

// UpdateAvatar stores a new avatar URL.
func (m *MemoryRepository) UpdateAvatar(_ context.Context, id uuid.UUID, avatarURL string) (User, error) {
	var updated User
	err := m.update(id, func(u *User) error {
		u.AvatarURL = avatarURL
		updated = *u
		return nil
	})
	return updated, err
}

// Len reports the number of stored users.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MemoryRepository) update(id uuid.UUID, fn func(*User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = m.now()
	m.users[id] = user
	return nil
}
