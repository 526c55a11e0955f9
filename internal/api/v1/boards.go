package v1

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/lanes/internal/domain"
)

// DefaultColumns are created, in order, on every new board.
var DefaultColumns = []string{"To Do", "In Progress", "Done"} //nolint:gochecknoglobals // fixed board template

type ListBoardsOutput struct {
	Body []*domain.Board
}

type CreateBoardInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Board name"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type BoardIDInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

// MembershipView is the caller's standing on a board.
type MembershipView struct {
	Role       domain.Role        `json:"role" doc:"Effective role; empty when the caller has none"`
	Membership *domain.Membership `json:"membership,omitempty" doc:"Membership row; absent for the owner"`
}

type GetMembershipOutput struct {
	Body *domain.Membership
}

type GetRoleOutput struct {
	Body *MembershipView
}

func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards the caller owns or has joined",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		boards, err := store.Boards().ListForUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/boards",
		Summary:     "Create a board owned by the caller",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		b, err := domain.NewBoard(userID, input.Body.Name)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if err := store.Boards().Create(ctx, b); err != nil {
			return nil, storeError(err, "user not found", "failed to create board")
		}
		createDefaultColumns(ctx, store, b.ID)

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*BoardOutput, error) {
		a, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}
		return &BoardOutput{Body: a.Board}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}",
		Summary:     "Delete a board with all its columns and tasks",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*struct{}, error) {
		if _, err := requireOwner(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		if err := store.Boards().Delete(ctx, input.BoardID); err != nil {
			return nil, storeError(err, "board not found", "failed to delete board")
		}

		return nil, nil
	})

	// The caller's own membership row. 404 when there is none, which is also
	// the answer for the owner.
	huma.Register(api, huma.Operation{
		OperationID: "get-my-membership",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/membership",
		Summary:     "Get the caller's membership on a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*GetMembershipOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		m, err := store.Members().GetByBoardAndUser(ctx, input.BoardID, userID)
		if err != nil {
			return nil, storeError(err, "membership not found", "failed to get membership")
		}

		return &GetMembershipOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-my-role",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/role",
		Summary:     "Get the caller's effective role on a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*GetRoleOutput, error) {
		a, err := boardAccess(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}

		view := &MembershipView{Role: a.Role}
		if a.Role != domain.RoleOwner {
			m, err := store.Members().GetByBoardAndUser(ctx, input.BoardID, a.UserID)
			if err != nil {
				return nil, storeError(err, "membership not found", "failed to get membership")
			}
			view.Membership = m
		}

		return &GetRoleOutput{Body: view}, nil
	})
}

// createDefaultColumns seeds a new board. The board already exists, so a
// failed column insert is logged and the remaining columns are still tried.
func createDefaultColumns(ctx context.Context, store DataStore, boardID uuid.UUID) {
	created := make([]*domain.Column, 0, len(DefaultColumns))
	for i, name := range DefaultColumns {
		color := domain.PickColorIndex(created, rand.IntN)
		c := &domain.Column{
			ID:         uuid.New(),
			BoardID:    boardID,
			Name:       name,
			Position:   i + 1,
			ColorIndex: &color,
			CreatedAt:  time.Now(),
		}
		if err := store.Columns().Create(ctx, c); err != nil {
			log.Warn().Err(err).Str("board_id", boardID.String()).Str("column", name).Msg("create default column")
			continue
		}
		created = append(created, c)
	}
}
