package drag

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/ordering"
)

// Commit tracks the backend writes of one drop.
type Commit struct {
	TaskID uuid.UUID

	changes []ordering.Change
	done    chan struct{}
	err     error
}

func newCommit(taskID uuid.UUID, changes []ordering.Change) *Commit {
	return &Commit{TaskID: taskID, changes: changes, done: make(chan struct{})}
}

func completedCommit(taskID uuid.UUID) *Commit {
	c := newCommit(taskID, nil)
	close(c.done)
	return c
}

// Changes returns the placement writes of this commit, moved task first.
func (c *Commit) Changes() []ordering.Change {
	return slices.Clone(c.changes)
}

// Done is closed once every write has been attempted and, on failure, the
// board has been resynced.
func (c *Commit) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the commit finishes or ctx ends. It returns the joined
// write errors.
func (c *Commit) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the joined write errors once Done is closed, nil before.
func (c *Commit) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
