package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTaskAssigned NotificationType = "task_assigned"
	NotificationDueReminder  NotificationType = "due_date_reminder"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"is_read"`
	TaskID    *uuid.UUID       `json:"task_id,omitempty"`
	BoardID   *uuid.UUID       `json:"board_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	// MarkAllRead marks every unread notification of the user read and
	// returns how many changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	ExistsSince(ctx context.Context, userID, taskID uuid.UUID, typ NotificationType, since time.Time) (bool, error)
}
