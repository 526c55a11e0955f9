package ordering_test

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/ordering"
)

// column builds an ordered column of n tasks with positions 1..n.
func column(columnID uuid.UUID, n int) []*domain.Task {
	tasks := make([]*domain.Task, n)
	for i := range tasks {
		tasks[i] = &domain.Task{
			ID:       uuid.New(),
			ColumnID: columnID,
			Title:    fmt.Sprintf("task-%d", i),
			Position: i + 1,
		}
	}
	return tasks
}

func idsOf(tasks []*domain.Task) []uuid.UUID {
	out := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// positionsAfter applies the changes and returns the sorted positions of columnID.
func positionsAfter(tasks []*domain.Task, changes []ordering.Change, columnID uuid.UUID) []int {
	var out []int
	for _, t := range ordering.Apply(tasks, changes) {
		if t.ColumnID == columnID {
			out = append(out, t.Position)
		}
	}
	slices.Sort(out)
	return out
}

func contiguous(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// ---------------------------------------------------------------------------
// Ordered / Compare
// ---------------------------------------------------------------------------

func TestOrdered(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	other := uuid.New()
	now := time.Now()

	a := &domain.Task{ID: uuid.New(), ColumnID: col, Position: 2, CreatedAt: now}
	b := &domain.Task{ID: uuid.New(), ColumnID: col, Position: 1, CreatedAt: now}
	missing := &domain.Task{ID: uuid.New(), ColumnID: col, Position: 0, CreatedAt: now}
	elsewhere := &domain.Task{ID: uuid.New(), ColumnID: other, Position: 1, CreatedAt: now}

	t.Run("filters and sorts by position", func(t *testing.T) {
		t.Parallel()

		got := ordering.Ordered([]*domain.Task{a, elsewhere, b}, col)
		assert.Equal(t, []uuid.UUID{b.ID, a.ID}, idsOf(got))
	})

	t.Run("missing position sorts last", func(t *testing.T) {
		t.Parallel()

		got := ordering.Ordered([]*domain.Task{missing, a, b}, col)
		assert.Equal(t, []uuid.UUID{b.ID, a.ID, missing.ID}, idsOf(got))
	})

	t.Run("duplicate positions break ties by creation time", func(t *testing.T) {
		t.Parallel()

		older := &domain.Task{ID: uuid.New(), ColumnID: col, Position: 1, CreatedAt: now.Add(-time.Hour)}
		newer := &domain.Task{ID: uuid.New(), ColumnID: col, Position: 1, CreatedAt: now}
		got := ordering.Ordered([]*domain.Task{newer, older}, col)
		assert.Equal(t, []uuid.UUID{older.ID, newer.ID}, idsOf(got))
	})

	t.Run("nil entries are skipped", func(t *testing.T) {
		t.Parallel()

		got := ordering.Ordered([]*domain.Task{nil, a}, col)
		assert.Len(t, got, 1)
	})
}

// ---------------------------------------------------------------------------
// Reorder
// ---------------------------------------------------------------------------

func TestReorder_ExampleScenario(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 3)
	a, b, c := tasks[0], tasks[1], tasks[2]

	t.Run("C to the top renumbers all three", func(t *testing.T) {
		t.Parallel()

		res, err := ordering.Reorder(tasks, c.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, res.Destination)
		assert.ElementsMatch(t, []ordering.Change{
			{TaskID: c.ID, ColumnID: col, Position: 1},
			{TaskID: a.ID, ColumnID: col, Position: 2},
			{TaskID: b.ID, ColumnID: col, Position: 3},
		}, res.Changes)
		assert.Nil(t, res.Origin)
	})

	t.Run("A just after itself is a no-op", func(t *testing.T) {
		t.Parallel()

		res, err := ordering.Reorder(tasks, a.ID, 1)
		require.NoError(t, err)
		assert.True(t, res.NoOp())
		assert.Equal(t, idsOf(tasks), res.Destination)
	})
}

func TestReorder_NoOpDetection(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 5)

	for i := range tasks {
		for _, drop := range []int{i, i + 1} {
			t.Run(fmt.Sprintf("index=%d drop=%d", i, drop), func(t *testing.T) {
				t.Parallel()

				res, err := ordering.Reorder(tasks, tasks[i].ID, drop)
				require.NoError(t, err)
				assert.True(t, res.NoOp())
			})
		}
	}
}

func TestReorder_MinimalDiff(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 5)

	res, err := ordering.Reorder(tasks, tasks[2].ID, 0)
	require.NoError(t, err)
	require.Len(t, res.Changes, 3)

	changed := make([]uuid.UUID, 0, len(res.Changes))
	for _, c := range res.Changes {
		changed = append(changed, c.TaskID)
	}
	assert.ElementsMatch(t, []uuid.UUID{tasks[0].ID, tasks[1].ID, tasks[2].ID}, changed)
	assert.NotContains(t, changed, tasks[3].ID)
	assert.NotContains(t, changed, tasks[4].ID)
}

func TestReorder_Downwards(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 4)

	// Drop zone 3 sits between the third and fourth task.
	res, err := ordering.Reorder(tasks, tasks[0].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tasks[1].ID, tasks[2].ID, tasks[0].ID, tasks[3].ID}, res.Destination)
	assert.Len(t, res.Changes, 3)
}

func TestReorder_ClampsDropIndex(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 3)

	t.Run("beyond end appends", func(t *testing.T) {
		t.Parallel()

		res, err := ordering.Reorder(tasks, tasks[0].ID, 99)
		require.NoError(t, err)
		assert.Equal(t, tasks[0].ID, res.Destination[2])
	})

	t.Run("negative inserts first", func(t *testing.T) {
		t.Parallel()

		res, err := ordering.Reorder(tasks, tasks[2].ID, -5)
		require.NoError(t, err)
		assert.Equal(t, tasks[2].ID, res.Destination[0])
	})
}

func TestReorder_ContiguityInvariant(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 6)
	// Simulate a column left sparse by earlier deletes.
	for i, task := range tasks {
		task.Position = (i + 1) * 10
	}

	for from := range tasks {
		for drop := 0; drop <= len(tasks); drop++ {
			res, err := ordering.Reorder(tasks, tasks[from].ID, drop)
			require.NoError(t, err)
			if res.NoOp() {
				continue
			}
			assert.Equal(t, contiguous(len(tasks)), positionsAfter(tasks, res.Changes, col),
				"from=%d drop=%d", from, drop)
		}
	}
}

func TestReorder_UnknownTask(t *testing.T) {
	t.Parallel()

	_, err := ordering.Reorder(column(uuid.New(), 2), uuid.New(), 0)
	require.ErrorIs(t, err, ordering.ErrTaskNotInList)
}

// ---------------------------------------------------------------------------
// Transfer
// ---------------------------------------------------------------------------

func TestTransfer_PreservesCounts(t *testing.T) {
	t.Parallel()

	colA := uuid.New()
	colB := uuid.New()
	origin := column(colA, 4)
	dest := column(colB, 3)
	moved := origin[1]

	res, err := ordering.Transfer(origin, dest, moved.ID, colB, 1)
	require.NoError(t, err)

	all := append(slices.Clone(origin), dest...)
	assert.Equal(t, contiguous(3), positionsAfter(all, res.Changes, colA))
	assert.Equal(t, contiguous(4), positionsAfter(all, res.Changes, colB))

	require.NotEmpty(t, res.Changes)
	first := res.Changes[0]
	assert.Equal(t, moved.ID, first.TaskID, "moved task is written first")
	assert.Equal(t, colB, first.ColumnID)
	assert.Equal(t, 2, first.Position)

	assert.Equal(t, []uuid.UUID{dest[0].ID, moved.ID, dest[1].ID, dest[2].ID}, res.Destination)
	assert.Equal(t, []uuid.UUID{origin[0].ID, origin[2].ID, origin[3].ID}, res.Origin)
}

func TestTransfer_OnlyShiftedRowsWritten(t *testing.T) {
	t.Parallel()

	colA := uuid.New()
	colB := uuid.New()
	origin := column(colA, 3)
	dest := column(colB, 2)

	// Moving the last origin task to the end of dest shifts nothing else.
	res, err := ordering.Transfer(origin, dest, origin[2].ID, colB, 2)
	require.NoError(t, err)
	assert.Equal(t, []ordering.Change{{TaskID: origin[2].ID, ColumnID: colB, Position: 3}}, res.Changes)
}

func TestTransfer_IntoEmptyColumn(t *testing.T) {
	t.Parallel()

	colA := uuid.New()
	colB := uuid.New()
	origin := column(colA, 2)

	res, err := ordering.Transfer(origin, nil, origin[0].ID, colB, 7)
	require.NoError(t, err)
	assert.Equal(t, []ordering.Change{
		{TaskID: origin[0].ID, ColumnID: colB, Position: 1},
		{TaskID: origin[1].ID, ColumnID: colA, Position: 1},
	}, res.Changes)
}

func TestTransfer_SameColumnDelegatesToReorder(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 3)

	res, err := ordering.Transfer(tasks, tasks, tasks[0].ID, col, 1)
	require.NoError(t, err)
	assert.True(t, res.NoOp())
}

func TestTransfer_UnknownTask(t *testing.T) {
	t.Parallel()

	_, err := ordering.Transfer(column(uuid.New(), 1), nil, uuid.New(), uuid.New(), 0)
	require.ErrorIs(t, err, ordering.ErrTaskNotInList)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	col := uuid.New()
	tasks := column(col, 2)
	out := ordering.Apply(tasks, []ordering.Change{{TaskID: tasks[0].ID, ColumnID: col, Position: 2}})

	assert.Equal(t, 1, tasks[0].Position)
	assert.Equal(t, 2, out[0].Position)
	assert.NotSame(t, tasks[0], out[0])
}
