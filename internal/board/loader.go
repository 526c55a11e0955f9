package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/domain"
)

// ErrNoBoard is returned by Sync before any board has been loaded.
var ErrNoBoard = errors.New("board: no board loaded")

// Source is the read side of the row store the loader needs. GetMembership
// returns domain.ErrNotFound when the user has no membership row.
type Source interface {
	GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.Board, error)
	GetMembership(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error)
	ListColumns(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error)
	ListTasksByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error)
	ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error)
}

// Loader rebuilds State and the session role from the row store. Load and
// Sync may run concurrently; a fetch started before the latest Load is
// discarded instead of overwriting the newer board.
type Loader struct {
	src     Source
	state   *State
	session *Session
	logger  zerolog.Logger

	mu      sync.Mutex
	boardID uuid.UUID
	gen     uint64
}

func NewLoader(src Source, state *State, session *Session, logger zerolog.Logger) *Loader {
	return &Loader{src: src, state: state, session: session, logger: logger}
}

// Load fetches boardID and makes it the loader's current board.
func (l *Loader) Load(ctx context.Context, boardID uuid.UUID) error {
	l.mu.Lock()
	l.boardID = boardID
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	if err := l.sync(ctx, boardID, gen); err != nil {
		return fmt.Errorf("board.Loader.Load: %w", err)
	}
	return nil
}

// Sync refetches the current board and replaces the cache wholesale. On error
// the cache is left as it was.
func (l *Loader) Sync(ctx context.Context) error {
	l.mu.Lock()
	boardID, gen := l.boardID, l.gen
	l.mu.Unlock()

	if boardID == uuid.Nil {
		return ErrNoBoard
	}
	if err := l.sync(ctx, boardID, gen); err != nil {
		return fmt.Errorf("board.Loader.Sync: %w", err)
	}
	return nil
}

// Current returns the board the loader tracks, or uuid.Nil before any Load.
func (l *Loader) Current() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.boardID
}

func (l *Loader) sync(ctx context.Context, boardID uuid.UUID, gen uint64) error {
	snap, role, err := l.fetch(ctx, boardID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		l.logger.Debug().
			Str("board_id", boardID.String()).
			Str("current_board_id", l.boardID.String()).
			Msg("discarding superseded board fetch")
		return nil
	}

	l.state.Replace(*snap)
	l.session.SetRole(role)

	l.logger.Debug().
		Str("board_id", boardID.String()).
		Int("columns", len(snap.Columns)).
		Int("tasks", len(snap.Tasks)).
		Str("role", string(role)).
		Msg("board synced")
	return nil
}

func (l *Loader) fetch(ctx context.Context, boardID uuid.UUID) (*Snapshot, domain.Role, error) {
	b, err := l.src.GetBoard(ctx, boardID)
	if err != nil {
		return nil, domain.RoleNone, fmt.Errorf("get board: %w", err)
	}

	user := l.session.User()
	var membership *domain.Membership
	if user.ID != uuid.Nil && b.OwnerID != user.ID {
		membership, err = l.src.GetMembership(ctx, boardID, user.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.RoleNone, fmt.Errorf("get membership: %w", err)
		}
	}
	role := domain.ResolveRole(b, user.ID, membership)

	columns, err := l.src.ListColumns(ctx, boardID)
	if err != nil {
		return nil, domain.RoleNone, fmt.Errorf("list columns: %w", err)
	}

	var tasks []*domain.Task
	if len(columns) > 0 {
		ids := make([]uuid.UUID, len(columns))
		for i, c := range columns {
			ids[i] = c.ID
		}
		tasks, err = l.src.ListTasksByColumns(ctx, ids)
		if err != nil {
			return nil, domain.RoleNone, fmt.Errorf("list tasks: %w", err)
		}
	}

	members, err := l.src.ListMembers(ctx, boardID)
	if err != nil {
		return nil, domain.RoleNone, fmt.Errorf("list members: %w", err)
	}

	return &Snapshot{Board: *b, Columns: columns, Tasks: tasks, Members: members}, role, nil
}

// RepoSource serves Source from domain repositories.
type RepoSource struct {
	Boards  domain.BoardRepository
	Members domain.MembershipRepository
	Columns domain.ColumnRepository
	Tasks   domain.TaskRepository
}

func (r RepoSource) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.Board, error) {
	return r.Boards.GetByID(ctx, boardID)
}

func (r RepoSource) GetMembership(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	return r.Members.GetByBoardAndUser(ctx, boardID, userID)
}

func (r RepoSource) ListColumns(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	return r.Columns.ListByBoard(ctx, boardID)
}

func (r RepoSource) ListTasksByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error) {
	return r.Tasks.ListByColumns(ctx, columnIDs)
}

func (r RepoSource) ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	return r.Members.ListByBoard(ctx, boardID)
}
