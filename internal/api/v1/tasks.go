package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/lanes/internal/domain"
)

const dateLayout = "2006-01-02"

type ListTasksInput struct {
	ColumnIDs []string `query:"column_id" required:"true" doc:"Column IDs, comma separated; tasks in any of them are returned"`
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type CreateTaskInput struct {
	ColumnID uuid.UUID `path:"columnID" doc:"Column ID"`
	Body     struct {
		Title    string `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Content  string `json:"content,omitempty" doc:"Task body"`
		Deadline string `json:"deadline,omitempty" doc:"Due date (YYYY-MM-DD)"`
	}
}

type TaskOutput struct {
	Body *domain.Task
}

type TaskIDInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title    *string `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Content  *string `json:"content,omitempty" doc:"Task body"`
		Deadline *string `json:"deadline,omitempty" doc:"Due date (YYYY-MM-DD); empty string clears it"`
	}
}

type UpdatePlacementInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		ColumnID uuid.UUID `json:"column_id" doc:"Column the task belongs to after the write"`
		Position int       `json:"position" minimum:"1" doc:"1-based position within the column"`
	}
}

type UpdateAssignmentInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		AssignedTo *uuid.UUID `json:"assigned_to,omitempty" doc:"Assignee; omitted unassigns"`
	}
}

func RegisterTaskRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks whose column is in the given set",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		ids, err := parseIDList(input.ColumnIDs)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		visible := make([]uuid.UUID, 0, len(ids))
		checked := make(map[uuid.UUID]bool)
		for _, id := range ids {
			c, err := store.Columns().GetByID(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to get column", err)
			}
			if !checked[c.BoardID] {
				if _, err := boardAccess(ctx, store, c.BoardID); err != nil {
					return nil, err
				}
				checked[c.BoardID] = true
			}
			visible = append(visible, id)
		}

		tasks := []*domain.Task{}
		if len(visible) > 0 {
			tasks, err = store.Tasks().ListByColumns(ctx, visible)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list tasks", err)
			}
			if tasks == nil {
				tasks = []*domain.Task{}
			}
		}

		return &ListTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/columns/{columnID}/tasks",
		Summary:     "Append a task to a column",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		if _, _, err := columnAccess(ctx, store, input.ColumnID, true); err != nil {
			return nil, err
		}

		title := strings.TrimSpace(input.Body.Title)
		if title == "" {
			return nil, huma.Error400BadRequest("task title is required")
		}
		deadline, err := parseDeadline(input.Body.Deadline)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		t := &domain.Task{
			ID:        uuid.New(),
			ColumnID:  input.ColumnID,
			Title:     title,
			Content:   input.Body.Content,
			Deadline:  deadline,
			CreatedAt: time.Now(),
		}

		if err := store.Tasks().Create(ctx, t); err != nil {
			return nil, storeError(err, "column not found", "failed to create task")
		}

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*TaskOutput, error) {
		t, _, _, err := taskAccess(ctx, store, input.ID, false)
		if err != nil {
			return nil, err
		}
		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit a task's title, content or deadline",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		t, _, _, err := taskAccess(ctx, store, input.ID, true)
		if err != nil {
			return nil, err
		}

		if input.Body.Title != nil {
			title := strings.TrimSpace(*input.Body.Title)
			if title == "" {
				return nil, huma.Error400BadRequest("task title must not be empty")
			}
			t.Title = title
		}
		if input.Body.Content != nil {
			t.Content = *input.Body.Content
		}
		if input.Body.Deadline != nil {
			deadline, err := parseDeadline(*input.Body.Deadline)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			t.Deadline = deadline
		}

		if err := store.Tasks().Update(ctx, t); err != nil {
			return nil, storeError(err, "task not found", "failed to update task")
		}

		return &TaskOutput{Body: t}, nil
	})

	// Placement is a full overwrite of column_id and position. Drag commits
	// send one of these per changed task.
	huma.Register(api, huma.Operation{
		OperationID: "update-task-placement",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/placement",
		Summary:     "Move a task to a column and position",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdatePlacementInput) (*TaskOutput, error) {
		t, from, _, err := taskAccess(ctx, store, input.ID, true)
		if err != nil {
			return nil, err
		}

		if input.Body.ColumnID != from.ID {
			to, err := store.Columns().GetByID(ctx, input.Body.ColumnID)
			if err != nil {
				return nil, storeError(err, "target column not found", "failed to get column")
			}
			if to.BoardID != from.BoardID {
				return nil, huma.Error400BadRequest("tasks cannot move between boards")
			}
		}

		if err := store.Tasks().UpdatePlacement(ctx, t.ID, input.Body.ColumnID, input.Body.Position); err != nil {
			return nil, storeError(err, "task not found", "failed to update placement")
		}

		t.ColumnID = input.Body.ColumnID
		t.Position = input.Body.Position
		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-assignment",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/assignment",
		Summary:     "Assign or unassign a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateAssignmentInput) (*TaskOutput, error) {
		t, _, a, err := taskAccess(ctx, store, input.ID, true)
		if err != nil {
			return nil, err
		}

		assignee := input.Body.AssignedTo
		if assignee != nil && *assignee != a.Board.OwnerID {
			m, err := store.Members().GetByBoardAndUser(ctx, a.Board.ID, *assignee)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error500InternalServerError("failed to resolve assignee", err)
			}
			if !m.EffectiveRole().CanView() {
				return nil, huma.Error400BadRequest("assignee is not a member of this board")
			}
		}

		by := a.UserID
		t.Assign(assignee, &by, time.Now())
		if err := store.Tasks().UpdateAssignment(ctx, t); err != nil {
			return nil, storeError(err, "task not found", "failed to update assignment")
		}

		if assignee != nil {
			notifyAssigned(ctx, store, t, a)
		}

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*struct{}, error) {
		if _, _, _, err := taskAccess(ctx, store, input.ID, true); err != nil {
			return nil, err
		}

		if err := store.Tasks().Delete(ctx, input.ID); err != nil {
			return nil, storeError(err, "task not found", "failed to delete task")
		}

		return nil, nil
	})
}

// notifyAssigned records a task_assigned notification for the assignee. The
// assignment itself already succeeded, so failures are only logged.
func notifyAssigned(ctx context.Context, store DataStore, t *domain.Task, a *access) {
	assigner := "Someone"
	if u, err := store.Users().GetByID(ctx, a.UserID); err == nil {
		assigner = u.DisplayName()
	}

	taskID, boardID := t.ID, a.Board.ID
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    *t.AssignedTo,
		Type:      domain.NotificationTaskAssigned,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("%s assigned %q to you", assigner, t.Title),
		TaskID:    &taskID,
		BoardID:   &boardID,
		CreatedAt: time.Now(),
	}
	if err := store.Notifications().Create(ctx, n); err != nil {
		log.Warn().Err(err).
			Str("task_id", t.ID.String()).
			Msg("assignment notification failed")
	}
}

func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("deadline must be YYYY-MM-DD, got %q", s)
	}
	return &d, nil
}

// parseIDList accepts repeated and comma separated IDs.
func parseIDList(raw []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("invalid column_id %q", part)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one column_id is required")
	}
	return ids, nil
}
