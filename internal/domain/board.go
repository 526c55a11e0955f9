package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBoard creates a Board owned by ownerID.
func NewBoard(ownerID uuid.UUID, name string) (*Board, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("board: owner ID is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("board: name is required")
	}
	return &Board{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}, nil
}

// Role is a user's permission level on a board. The zero value grants nothing.
type Role string

const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of owner, editor or viewer.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// CanEdit reports whether r may mutate columns and tasks.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// CanView reports whether r may read the board.
func (r Role) CanView() bool {
	return r.Valid()
}

type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusAccepted MemberStatus = "accepted"
)

// Membership is an explicit invitation of a collaborator to a board.
// The owner never has a membership row.
type Membership struct {
	ID        uuid.UUID    `json:"id"`
	BoardID   uuid.UUID    `json:"board_id"`
	UserID    uuid.UUID    `json:"user_id"`
	Role      Role         `json:"role"`
	Status    MemberStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// EffectiveRole is the role the membership grants right now. A pending
// invitation grants nothing until it is accepted.
func (m *Membership) EffectiveRole() Role {
	if m == nil || m.Status != MemberStatusAccepted {
		return RoleNone
	}
	return m.Role
}

// ResolveRole derives a user's role on a board from ownership and membership.
// membership may be nil.
func ResolveRole(b *Board, userID uuid.UUID, membership *Membership) Role {
	if b == nil || userID == uuid.Nil {
		return RoleNone
	}
	if b.OwnerID == userID {
		return RoleOwner
	}
	if membership == nil || membership.BoardID != b.ID || membership.UserID != userID {
		return RoleNone
	}
	return membership.EffectiveRole()
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	GetByBoardAndUser(ctx context.Context, boardID, userID uuid.UUID) (*Membership, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Membership, error)
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status MemberStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}
