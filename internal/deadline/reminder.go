package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/metrics"
)

const (
	// OverdueWindow bounds how far past its deadline a task keeps being
	// reminded about.
	OverdueWindow = 7 * 24 * time.Hour
	// Cooldown is the minimum gap between two reminders for the same task
	// and assignee.
	Cooldown = 24 * time.Hour
)

// DueLister finds assigned tasks with a deadline in [from, to].
type DueLister interface {
	ListAssignedDue(ctx context.Context, from, to time.Time) ([]*domain.DueTask, error)
}

// NotificationStore is the subset of the notification repository the
// reminder writes through.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	ExistsSince(ctx context.Context, userID, taskID uuid.UUID, typ domain.NotificationType, since time.Time) (bool, error)
}

// Reminder periodically notifies assignees of tasks that are overdue or due
// within SoonDays.
type Reminder struct {
	tasks    DueLister
	notes    NotificationStore
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewReminder(tasks DueLister, notes NotificationStore, interval time.Duration, logger zerolog.Logger) *Reminder {
	return &Reminder{
		tasks:    tasks,
		notes:    notes,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run scans immediately and then every interval until ctx ends. A
// non-positive interval disables the reminder.
func (r *Reminder) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.logger.Info().Msg("due-date reminders disabled")
		return nil
	}

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reminder) tick(ctx context.Context) {
	sent, err := r.RunOnce(ctx, r.now())
	if err != nil {
		r.logger.Error().Err(err).Int("sent", sent).Msg("due-date reminder scan")
		return
	}
	if sent > 0 {
		r.logger.Info().Int("sent", sent).Msg("due-date reminders sent")
	}
}

// RunOnce sends the reminders due at now and returns how many were created.
// A failure on one task does not stop the scan; failures are joined.
func (r *Reminder) RunOnce(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	sent, err := r.scan(ctx, now)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ReminderRuns.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return sent, err
}

func (r *Reminder) scan(ctx context.Context, now time.Time) (int, error) {
	today := domain.DateOnly(now)
	due, err := r.tasks.ListAssignedDue(ctx, today.Add(-OverdueWindow), today.AddDate(0, 0, SoonDays))
	if err != nil {
		return 0, fmt.Errorf("deadline.RunOnce: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, dt := range due {
		if dt.Task.AssignedTo == nil || dt.Task.Deadline == nil {
			continue
		}
		ok, err := r.remind(ctx, dt, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", dt.Task.ID, err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

func (r *Reminder) remind(ctx context.Context, dt *domain.DueTask, now time.Time) (bool, error) {
	t := dt.Task
	days := DaysUntil(*t.Deadline, now)
	if days > SoonDays {
		return false, nil
	}

	exists, err := r.notes.ExistsSince(ctx, *t.AssignedTo, t.ID, domain.NotificationDueReminder, now.Add(-Cooldown))
	if err != nil {
		return false, fmt.Errorf("check recent reminder: %w", err)
	}
	if exists {
		return false, nil
	}

	title, message := reminderText(t.Title, days)
	taskID, boardID := t.ID, dt.BoardID
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    *t.AssignedTo,
		Type:      domain.NotificationDueReminder,
		Title:     title,
		Message:   message,
		TaskID:    &taskID,
		BoardID:   &boardID,
		CreatedAt: now,
	}
	if err := r.notes.Create(ctx, n); err != nil {
		return false, fmt.Errorf("create reminder: %w", err)
	}

	metrics.RemindersSent.Inc()
	r.logger.Debug().
		Str("task_id", t.ID.String()).
		Str("user_id", n.UserID.String()).
		Int("days", days).
		Msg("due-date reminder created")
	return true, nil
}

func reminderText(title string, days int) (string, string) {
	switch {
	case days < 0:
		return "Task overdue", fmt.Sprintf("Task %q is past its deadline. Please finish it soon.", title)
	case days == 0:
		return "Due today", fmt.Sprintf("Task %q is due today.", title)
	case days == 1:
		return "Due tomorrow", fmt.Sprintf("Task %q is due tomorrow. Make sure it is done.", title)
	default:
		return "Deadline approaching", fmt.Sprintf("Task %q is due in %d days.", title, days)
	}
}
