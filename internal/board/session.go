package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/gosuda/lanes/internal/domain"
)

// Identity yields the signed-in user, or nil when nobody is signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// Session is the per-view context that permission checks consult: who is
// looking at the board and with which role. The role changes at runtime when
// the reconciler observes a membership update.
type Session struct {
	mu   sync.RWMutex
	user domain.User
	role domain.Role
}

func NewSession(user domain.User) *Session {
	return &Session{user: user}
}

// NewSessionFromIdentity resolves the current user. An anonymous caller gets a
// session with a zero user, which never gains a role.
func NewSessionFromIdentity(ctx context.Context, id Identity) (*Session, error) {
	u, err := id.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("board.NewSessionFromIdentity: %w", err)
	}
	if u == nil {
		return &Session{}, nil
	}
	return NewSession(*u), nil
}

func (s *Session) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// SetRole stores role and reports the previous value and whether it changed.
func (s *Session) SetRole(role domain.Role) (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.role
	s.role = role
	return prev, prev != role
}

func (s *Session) CanEdit() bool {
	return s.Role().CanEdit()
}
