package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/lanes/internal/domain"
)

type memUsers struct {
	domain.UserRepository
	byEmail map[string]*domain.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.byEmail[u.Email] = u
	return nil
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	existing := &domain.User{ID: uuid.New(), Email: "ada@example.com"}

	t.Run("returns existing user", func(t *testing.T) {
		t.Parallel()
		users := &memUsers{byEmail: map[string]*domain.User{existing.Email: existing}}

		u, err := ensureUser(context.Background(), users, " ADA@example.com ", "")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, u.ID)
		assert.Len(t, users.byEmail, 1)
	})

	t.Run("creates missing user", func(t *testing.T) {
		t.Parallel()
		users := &memUsers{byEmail: map[string]*domain.User{}}

		u, err := ensureUser(context.Background(), users, "grace@example.com", "grace")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, u.ID)
		assert.Equal(t, "grace", u.Username)
		assert.False(t, u.CreatedAt.IsZero())
		assert.Contains(t, users.byEmail, "grace@example.com")
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		t.Parallel()
		_, err := ensureUser(context.Background(), &memUsers{byEmail: map[string]*domain.User{}}, "nobody", "")
		require.Error(t, err)
	})
}
