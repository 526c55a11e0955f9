// Package drag implements the drag session controller: it gates pick-up on
// the session role, tracks the hover preview, and on drop applies the
// placement changes to the board cache before writing them to the backend.
package drag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/board"
	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/metrics"
	"github.com/gosuda/lanes/internal/notice"
	"github.com/gosuda/lanes/internal/ordering"
)

// End as a Target index means the column body itself: append after the last
// task.
const End = -1

var (
	ErrBusy         = errors.New("drag: a task is already being dragged")
	ErrNotDragging  = errors.New("drag: no drag in progress")
	ErrNoDropTarget = errors.New("drag: drop target is not a column of this board")
)

const defaultWriteTimeout = 10 * time.Second

// Phase is the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseCommitting
	PhaseCancelling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseCommitting:
		return "committing"
	case PhaseCancelling:
		return "cancelling"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CancelReason says why a drag ended without a commit.
type CancelReason string

const (
	CancelEscape  CancelReason = "escape"
	CancelOutside CancelReason = "outside"
	CancelAborted CancelReason = "aborted"

	cancelNoTarget  CancelReason = "no_target"
	cancelForbidden CancelReason = "forbidden"
	cancelVanished  CancelReason = "vanished"
)

// Target is a drop zone: Index is the gap in the column's rendered list
// (0 before the first task, len after the last) or End.
type Target struct {
	ColumnID uuid.UUID
	Index    int
}

// Writer persists one task placement as a full overwrite of column and
// position.
type Writer interface {
	UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error
}

// Resyncer reloads the board from the backend.
type Resyncer interface {
	Sync(ctx context.Context) error
}

// Drag describes the task currently held.
type Drag struct {
	TaskID         uuid.UUID
	OriginColumnID uuid.UUID
	OriginIndex    int
	StartedAt      time.Time
}

// Preview is where the held task would land if dropped on the hovered target.
type Preview struct {
	Target Target
	// Index is the task's resulting index in the target column.
	Index   int
	NoOp    bool
	Changes []ordering.Change
}

type Option func(*Controller)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithNotices(sink notice.Sink) Option {
	return func(c *Controller) { c.notices = sink }
}

// WithWriteTimeout bounds each placement write of a commit.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Controller) { c.writeTimeout = d }
}

// Controller runs one drag at a time against a board cache.
type Controller struct {
	state   *board.State
	session *board.Session
	writer  Writer
	resync  Resyncer

	notices      notice.Sink
	logger       zerolog.Logger
	writeTimeout time.Duration

	mu      sync.Mutex
	phase   Phase
	active  *Drag
	preview *Preview
	last    *Commit

	inflight sync.WaitGroup
}

func New(state *board.State, session *board.Session, writer Writer, resync Resyncer, opts ...Option) *Controller {
	c := &Controller{
		state:        state,
		session:      session,
		writer:       writer,
		resync:       resync,
		notices:      notice.Discard,
		logger:       zerolog.Nop(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Active returns the held task, if any.
func (c *Controller) Active() (Drag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Drag{}, false
	}
	return *c.active, true
}

// Start picks up taskID. Only owners and editors may drag; anyone else gets a
// notice and domain.ErrForbidden and nothing changes.
func (c *Controller) Start(taskID uuid.UUID) (Drag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.CanEdit() {
		metrics.DragCancels.WithLabelValues(string(cancelForbidden)).Inc()
		c.notices.Notify(notice.New(notice.LevelError, "You do not have permission to move tasks on this board."))
		return Drag{}, domain.ErrForbidden
	}
	if c.phase != PhaseIdle {
		return Drag{}, ErrBusy
	}

	task, ok := c.state.Task(taskID)
	if !ok {
		return Drag{}, fmt.Errorf("drag.Start: task %s: %w", taskID, domain.ErrNotFound)
	}

	d := &Drag{
		TaskID:         taskID,
		OriginColumnID: task.ColumnID,
		OriginIndex:    ordering.IndexOf(c.state.ColumnTasks(task.ColumnID), taskID),
		StartedAt:      time.Now(),
	}
	c.active = d
	c.preview = nil
	c.phase = PhaseDragging

	c.logger.Debug().Str("task_id", taskID.String()).Str("column_id", task.ColumnID.String()).Msg("drag started")
	return *d, nil
}

// Hover records the target under the pointer and returns the resulting
// preview. Nothing is written to the cache. A target outside the board clears
// the preview and returns ErrNoDropTarget; the drag stays active.
func (c *Controller) Hover(target Target) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseDragging {
		return Preview{}, ErrNotDragging
	}
	p, err := c.plan(c.active, target)
	if err != nil {
		c.preview = nil
		return Preview{}, err
	}
	c.preview = &p
	return p, nil
}

// Preview returns the last hover preview.
func (c *Controller) Preview() (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return Preview{}, false
	}
	return *c.preview, true
}

// Cancel ends the drag without writing anything.
func (c *Controller) Cancel(reason CancelReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseDragging {
		return ErrNotDragging
	}
	c.cancelLocked(reason)
	return nil
}

// Drop commits the held task onto target. The cache is updated before Drop
// returns; the backend writes run in the background, in commit order, and are
// observable through the returned Commit. ctx scopes only the values carried
// to the writes, not their lifetime.
func (c *Controller) Drop(ctx context.Context, target Target) (*Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseDragging {
		return nil, ErrNotDragging
	}
	d := c.active

	if !c.session.CanEdit() {
		c.cancelLocked(cancelForbidden)
		c.notices.Notify(notice.New(notice.LevelError, "Your role on this board changed; the task was not moved."))
		return nil, domain.ErrForbidden
	}

	p, err := c.plan(d, target)
	if err != nil {
		if errors.Is(err, ErrNoDropTarget) {
			c.cancelLocked(cancelNoTarget)
		} else {
			c.cancelLocked(cancelVanished)
		}
		return nil, err
	}

	c.phase = PhaseCommitting
	defer c.idleLocked()

	if p.NoOp {
		metrics.DragCommits.WithLabelValues("noop").Inc()
		return completedCommit(d.TaskID), nil
	}

	c.state.ApplyChanges(p.Changes)

	commit := newCommit(d.TaskID, p.Changes)
	prev := c.last
	c.last = commit
	c.inflight.Add(1)
	go c.write(context.WithoutCancel(ctx), prev, commit)

	c.logger.Debug().
		Str("task_id", d.TaskID.String()).
		Str("column_id", target.ColumnID.String()).
		Int("changes", len(p.Changes)).
		Msg("drag committed")
	return commit, nil
}

// Wait blocks until every dispatched commit has finished writing.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) plan(d *Drag, target Target) (Preview, error) {
	task, ok := c.state.Task(d.TaskID)
	if !ok {
		return Preview{}, fmt.Errorf("drag: task %s: %w", d.TaskID, domain.ErrNotFound)
	}
	if _, ok := c.state.Column(target.ColumnID); !ok {
		return Preview{}, ErrNoDropTarget
	}

	origin := c.state.ColumnTasks(task.ColumnID)
	var (
		res ordering.Result
		err error
	)
	if target.ColumnID == task.ColumnID {
		idx := target.Index
		if idx == End {
			idx = len(origin)
		}
		res, err = ordering.Reorder(origin, d.TaskID, idx)
	} else {
		dest := c.state.ColumnTasks(target.ColumnID)
		idx := target.Index
		if idx == End {
			idx = len(dest)
		}
		res, err = ordering.Transfer(origin, dest, d.TaskID, target.ColumnID, idx)
	}
	if err != nil {
		return Preview{}, fmt.Errorf("drag: %w", err)
	}

	return Preview{
		Target:  target,
		Index:   slices.Index(res.Destination, d.TaskID),
		NoOp:    res.NoOp(),
		Changes: res.Changes,
	}, nil
}

func (c *Controller) cancelLocked(reason CancelReason) {
	c.phase = PhaseCancelling
	metrics.DragCancels.WithLabelValues(string(reason)).Inc()
	if c.active != nil {
		c.logger.Debug().Str("task_id", c.active.TaskID.String()).Str("reason", string(reason)).Msg("drag cancelled")
	}
	c.idleLocked()
}

func (c *Controller) idleLocked() {
	c.phase = PhaseIdle
	c.active = nil
	c.preview = nil
}

func (c *Controller) write(ctx context.Context, prev, commit *Commit) {
	defer c.inflight.Done()
	defer close(commit.done)

	if prev != nil {
		<-prev.done
	}

	var errs []error
	for _, ch := range commit.changes {
		wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
		err := c.writer.UpdatePlacement(wctx, ch.TaskID, ch.ColumnID, ch.Position)
		cancel()
		if err != nil {
			metrics.DragWrites.WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).
				Str("task_id", ch.TaskID.String()).
				Int("position", ch.Position).
				Msg("placement write failed")
			errs = append(errs, fmt.Errorf("task %s: %w", ch.TaskID, err))
			continue
		}
		metrics.DragWrites.WithLabelValues("ok").Inc()
	}

	commit.err = errors.Join(errs...)
	if commit.err == nil {
		metrics.DragCommits.WithLabelValues("ok").Inc()
		return
	}

	metrics.DragCommits.WithLabelValues("failed").Inc()
	c.notices.Notify(notice.New(notice.LevelError, "Failed to save the new task order. Reloading the board."))
	if err := c.resync.Sync(ctx); err != nil {
		c.logger.Error().Err(err).Msg("resync after failed commit")
	}
}
