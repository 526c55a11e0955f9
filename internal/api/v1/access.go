package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/server/middleware"
)

// access is the caller's standing on one board.
type access struct {
	UserID uuid.UUID
	Board  *domain.Board
	Role   domain.Role
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}

// boardAccess resolves the caller's role on boardID. A board the caller
// cannot see is reported as not found.
func boardAccess(ctx context.Context, store DataStore, boardID uuid.UUID) (*access, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	b, err := store.Boards().GetByID(ctx, boardID)
	if err != nil {
		return nil, storeError(err, "board not found", "failed to get board")
	}

	var membership *domain.Membership
	if b.OwnerID != userID {
		membership, err = store.Members().GetByBoardAndUser(ctx, boardID, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error500InternalServerError("failed to resolve membership", err)
		}
	}

	a := &access{UserID: userID, Board: b, Role: domain.ResolveRole(b, userID, membership)}
	if !a.Role.CanView() {
		return nil, huma.Error404NotFound("board not found")
	}
	return a, nil
}

func requireEditor(ctx context.Context, store DataStore, boardID uuid.UUID) (*access, error) {
	a, err := boardAccess(ctx, store, boardID)
	if err != nil {
		return nil, err
	}
	if !a.Role.CanEdit() {
		return nil, huma.Error403Forbidden("editor role required")
	}
	return a, nil
}

func requireOwner(ctx context.Context, store DataStore, boardID uuid.UUID) (*access, error) {
	a, err := boardAccess(ctx, store, boardID)
	if err != nil {
		return nil, err
	}
	if a.Role != domain.RoleOwner {
		return nil, huma.Error403Forbidden("only the board owner can manage members")
	}
	return a, nil
}

// columnAccess loads a column and checks the caller's role on its board.
func columnAccess(ctx context.Context, store DataStore, columnID uuid.UUID, edit bool) (*domain.Column, *access, error) {
	c, err := store.Columns().GetByID(ctx, columnID)
	if err != nil {
		return nil, nil, storeError(err, "column not found", "failed to get column")
	}
	check := boardAccess
	if edit {
		check = requireEditor
	}
	a, err := check(ctx, store, c.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return c, a, nil
}

// taskAccess loads a task together with its column and checks the caller's
// role on the owning board.
func taskAccess(ctx context.Context, store DataStore, taskID uuid.UUID, edit bool) (*domain.Task, *domain.Column, *access, error) {
	t, err := store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, nil, storeError(err, "task not found", "failed to get task")
	}
	c, a, err := columnAccess(ctx, store, t.ColumnID, edit)
	if err != nil {
		return nil, nil, nil, err
	}
	return t, c, a, nil
}

// storeError maps repository errors onto HTTP problems.
func storeError(err error, notFound, failed string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(notFound)
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("conflicting change", err)
	case errors.Is(err, domain.ErrInvalid):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("forbidden")
	default:
		return huma.Error500InternalServerError(failed, err)
	}
}
