// Package ordering keeps the tasks of a column totally ordered by a dense,
// 1-based integer position and computes the minimal set of rows a move has to
// rewrite. Everything here is pure: no I/O, no shared state.
package ordering

import (
	"cmp"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

// ErrTaskNotInList is returned when the moved task is absent from its origin list.
var ErrTaskNotInList = errors.New("ordering: task not in list")

// Change is one row write: the task ends up in ColumnID at Position.
type Change struct {
	TaskID   uuid.UUID `json:"task_id"`
	ColumnID uuid.UUID `json:"column_id"`
	Position int       `json:"position"`
}

// Result is the outcome of a move. Origin is only set for cross-column moves.
type Result struct {
	Destination []uuid.UUID
	Origin      []uuid.UUID
	Changes     []Change
}

// NoOp reports whether the move requires no writes at all.
func (r Result) NoOp() bool {
	return len(r.Changes) == 0
}

// Compare orders two tasks for display. Tasks without a usable position sort
// last; ties fall back to creation time, then ID.
func Compare(a, b *domain.Task) int {
	switch {
	case a.HasPosition() && !b.HasPosition():
		return -1
	case !a.HasPosition() && b.HasPosition():
		return 1
	}
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

// Ordered returns the tasks of columnID sorted for display. The input is not modified.
func Ordered(tasks []*domain.Task, columnID uuid.UUID) []*domain.Task {
	out := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil && t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, Compare)
	return out
}

// IndexOf returns the index of the task with id in list, or -1.
func IndexOf(list []*domain.Task, id uuid.UUID) int {
	return slices.IndexFunc(list, func(t *domain.Task) bool { return t.ID == id })
}

// Renumber assigns position i+1 to list[i] inside columnID and returns only
// the entries whose position or column actually changes.
func Renumber(list []*domain.Task, columnID uuid.UUID) []Change {
	var changes []Change
	for i, t := range list {
		pos := i + 1
		if t.Position != pos || t.ColumnID != columnID {
			changes = append(changes, Change{TaskID: t.ID, ColumnID: columnID, Position: pos})
		}
	}
	return changes
}

// Reorder moves taskID inside its own column. list must be the column in
// display order and dropIndex a drop zone of that list: 0 is before the first
// task, len(list) after the last. Dropping a task onto the zone directly
// before or after itself is a no-op.
func Reorder(list []*domain.Task, taskID uuid.UUID, dropIndex int) (Result, error) {
	current := IndexOf(list, taskID)
	if current < 0 {
		return Result{}, ErrTaskNotInList
	}
	columnID := list[current].ColumnID
	dropIndex = clamp(dropIndex, 0, len(list))

	if dropIndex == current || dropIndex == current+1 {
		return Result{Destination: ids(list)}, nil
	}

	insertAt := dropIndex
	if current < dropIndex {
		insertAt--
	}

	reordered := slices.Clone(list)
	moved := reordered[current]
	reordered = slices.Delete(reordered, current, current+1)
	reordered = slices.Insert(reordered, clamp(insertAt, 0, len(reordered)), moved)

	return Result{
		Destination: ids(reordered),
		Changes:     Renumber(reordered, columnID),
	}, nil
}

// Transfer moves taskID from the origin column list into dest at dropIndex
// (clamped to [0, len(dest)]). Both columns are renumbered independently. The
// moved task's change always comes first in the write-set. When destColumnID
// is the task's own column Transfer behaves like Reorder.
func Transfer(origin, dest []*domain.Task, taskID, destColumnID uuid.UUID, dropIndex int) (Result, error) {
	current := IndexOf(origin, taskID)
	if current < 0 {
		return Result{}, ErrTaskNotInList
	}
	moved := origin[current]
	if moved.ColumnID == destColumnID {
		return Reorder(origin, taskID, dropIndex)
	}

	target := slices.DeleteFunc(slices.Clone(dest), func(t *domain.Task) bool { return t.ID == taskID })
	target = slices.Insert(target, clamp(dropIndex, 0, len(target)), moved)

	remaining := slices.Delete(slices.Clone(origin), current, current+1)

	destChanges := Renumber(target, destColumnID)
	changes := make([]Change, 0, len(destChanges)+len(remaining))
	for _, c := range destChanges {
		if c.TaskID == taskID {
			changes = append(changes, c)
		}
	}
	for _, c := range destChanges {
		if c.TaskID != taskID {
			changes = append(changes, c)
		}
	}
	changes = append(changes, Renumber(remaining, moved.ColumnID)...)

	return Result{
		Destination: ids(target),
		Origin:      ids(remaining),
		Changes:     changes,
	}, nil
}

// Apply returns copies of tasks with the changes applied. Tasks not named by
// any change are copied unchanged.
func Apply(tasks []*domain.Task, changes []Change) []*domain.Task {
	byID := make(map[uuid.UUID]Change, len(changes))
	for _, c := range changes {
		byID[c.TaskID] = c
	}
	out := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		cp := *t
		if c, ok := byID[t.ID]; ok {
			cp.ColumnID = c.ColumnID
			cp.Position = c.Position
		}
		out = append(out, &cp)
	}
	return out
}

func ids(list []*domain.Task) []uuid.UUID {
	out := make([]uuid.UUID, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
