package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is a card on the board. Position is 1-based within its column; a
// non-positive Position means the row carries no usable ordering key.
type Task struct {
	ID         uuid.UUID  `json:"id"`
	ColumnID   uuid.UUID  `json:"column_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Position   int        `json:"position"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	AssignedBy *uuid.UUID `json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasPosition reports whether the task carries a usable ordering key.
func (t *Task) HasPosition() bool {
	return t.Position > 0
}

// Assign sets or clears the assignment triple. A nil assignee clears all three.
func (t *Task) Assign(assignee, by *uuid.UUID, at time.Time) {
	if assignee == nil {
		t.AssignedTo, t.AssignedBy, t.AssignedAt = nil, nil, nil
		return
	}
	to := *assignee
	t.AssignedTo = &to
	if by != nil {
		b := *by
		t.AssignedBy = &b
	} else {
		t.AssignedBy = nil
	}
	t.AssignedAt = &at
}

// DateOnly truncates a deadline to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueTask is an assigned task with a deadline, joined with its board.
type DueTask struct {
	Task    Task
	BoardID uuid.UUID
}

type TaskRepository interface {
	// Create inserts t. A non-positive Position is replaced by the next free
	// position at the end of its column.
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	// UpdatePlacement overwrites both column_id and position of one task.
	UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error
	UpdateAssignment(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAssignedDue(ctx context.Context, from, to time.Time) ([]*DueTask, error)
}
