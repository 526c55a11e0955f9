package v1

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

type ListColumnsOutput struct {
	Body []*domain.Column
}

type CreateColumnInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Name       string `json:"name" minLength:"1" maxLength:"100" doc:"Column name"`
		ColorIndex *int   `json:"colorIndex,omitempty" minimum:"0" maximum:"7" doc:"Palette slot; picked automatically when omitted"`
	}
}

type ColumnOutput struct {
	Body *domain.Column
}

type UpdateColumnInput struct {
	ID   uuid.UUID `path:"id" doc:"Column ID"`
	Body struct {
		Name       *string `json:"name,omitempty" maxLength:"100" doc:"Column name"`
		Position   *int    `json:"position,omitempty" minimum:"1" doc:"1-based position on the board"`
		ColorIndex *int    `json:"colorIndex,omitempty" minimum:"0" maximum:"7" doc:"Palette slot"`
	}
}

type ColumnIDInput struct {
	ID uuid.UUID `path:"id" doc:"Column ID"`
}

func RegisterColumnRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-columns",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/columns",
		Summary:     "List a board's columns ordered by position",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *BoardIDInput) (*ListColumnsOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		cols, err := store.Columns().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list columns", err)
		}
		if cols == nil {
			cols = []*domain.Column{}
		}

		return &ListColumnsOutput{Body: cols}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-column",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/columns",
		Summary:     "Append a column to a board",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *CreateColumnInput) (*ColumnOutput, error) {
		if _, err := requireEditor(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		name := strings.TrimSpace(input.Body.Name)
		if name == "" {
			return nil, huma.Error400BadRequest("column name is required")
		}

		color := input.Body.ColorIndex
		if color == nil {
			existing, err := store.Columns().ListByBoard(ctx, input.BoardID)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list columns", err)
			}
			idx := domain.PickColorIndex(existing, rand.IntN)
			color = &idx
		}

		c := &domain.Column{
			ID:         uuid.New(),
			BoardID:    input.BoardID,
			Name:       name,
			ColorIndex: color,
			CreatedAt:  time.Now(),
		}

		if err := store.Columns().Create(ctx, c); err != nil {
			return nil, storeError(err, "board not found", "failed to create column")
		}

		return &ColumnOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-column",
		Method:      http.MethodPatch,
		Path:        "/columns/{id}",
		Summary:     "Rename, reposition or recolor a column",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *UpdateColumnInput) (*ColumnOutput, error) {
		c, _, err := columnAccess(ctx, store, input.ID, true)
		if err != nil {
			return nil, err
		}

		if input.Body.Name != nil {
			name := strings.TrimSpace(*input.Body.Name)
			if name == "" {
				return nil, huma.Error400BadRequest("column name must not be empty")
			}
			c.Name = name
		}
		if input.Body.Position != nil {
			c.Position = *input.Body.Position
		}
		if input.Body.ColorIndex != nil {
			idx := *input.Body.ColorIndex
			c.ColorIndex = &idx
		}

		if err := store.Columns().Update(ctx, c); err != nil {
			return nil, storeError(err, "column not found", "failed to update column")
		}

		return &ColumnOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-column",
		Method:      http.MethodDelete,
		Path:        "/columns/{id}",
		Summary:     "Delete a column and every task in it",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *ColumnIDInput) (*struct{}, error) {
		if _, _, err := columnAccess(ctx, store, input.ID, true); err != nil {
			return nil, err
		}

		if err := store.Columns().Delete(ctx, input.ID); err != nil {
			return nil, storeError(err, "column not found", "failed to delete column")
		}

		return nil, nil
	})
}
