// Package board holds the client-side view of one board: the row cache that
// both optimistic drags and realtime events write into, the session the
// permission checks read from, and the loader that rebuilds both from the
// row store.
package board

import (
	"cmp"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/ordering"
)

// Snapshot is a full, consistent read of a board.
type Snapshot struct {
	Board   domain.Board
	Columns []*domain.Column
	Tasks   []*domain.Task
	Members []*domain.Membership
}

// State is the single cache of a board's rows, keyed by primary key. Every
// read returns copies; callers never hold references into the cache.
type State struct {
	mu      sync.RWMutex
	board   domain.Board
	loaded  bool
	columns map[uuid.UUID]domain.Column
	tasks   map[uuid.UUID]domain.Task
	members map[uuid.UUID]domain.Membership
	version uint64
}

func NewState() *State {
	return &State{
		columns: make(map[uuid.UUID]domain.Column),
		tasks:   make(map[uuid.UUID]domain.Task),
		members: make(map[uuid.UUID]domain.Membership),
	}
}

// Replace swaps the whole cache for snap.
func (s *State) Replace(snap Snapshot) {
	columns := make(map[uuid.UUID]domain.Column, len(snap.Columns))
	for _, c := range snap.Columns {
		columns[c.ID] = *c
	}
	tasks := make(map[uuid.UUID]domain.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks[t.ID] = *t
	}
	members := make(map[uuid.UUID]domain.Membership, len(snap.Members))
	for _, m := range snap.Members {
		members[m.ID] = *m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = snap.Board
	s.loaded = true
	s.columns = columns
	s.tasks = tasks
	s.members = members
	s.version++
}

// Clear forgets the current board.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = domain.Board{}
	s.loaded = false
	clear(s.columns)
	clear(s.tasks)
	clear(s.members)
	s.version++
}

// Board returns the cached board row and whether one is loaded.
func (s *State) Board() (domain.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board, s.loaded
}

func (s *State) BoardID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.ID
}

// Version increases on every mutation.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Columns returns the board's columns ordered by position.
func (s *State) Columns() []*domain.Column {
	s.mu.RLock()
	out := make([]*domain.Column, 0, len(s.columns))
	for _, c := range s.columns {
		out = append(out, &c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *domain.Column) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (s *State) Column(id uuid.UUID) (*domain.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.columns[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

// Tasks returns every cached task in no particular order.
func (s *State) Tasks() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, &t)
	}
	return out
}

func (s *State) Task(id uuid.UUID) (*domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return &t, true
}

// ColumnTasks returns the tasks of one column in display order, derived from
// the full task set on every call.
func (s *State) ColumnTasks(columnID uuid.UUID) []*domain.Task {
	return ordering.Ordered(s.Tasks(), columnID)
}

func (s *State) Members() []*domain.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Membership, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, &m)
	}
	slices.SortFunc(out, func(a, b *domain.Membership) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// UpsertColumn inserts or wholesale replaces a column row. It reports whether
// the row was new.
func (s *State) UpsertColumn(c domain.Column) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.columns[c.ID]
	s.columns[c.ID] = c
	s.version++
	return !existed
}

// RemoveColumn drops a column and every cached task that references it. It
// returns the number of tasks removed alongside.
func (s *State) RemoveColumn(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.columns, id)
	removed := 0
	for tid, t := range s.tasks {
		if t.ColumnID == id {
			delete(s.tasks, tid)
			removed++
		}
	}
	s.version++
	return removed
}

// UpsertTask inserts or wholesale replaces a task row. It reports whether the
// row was new.
func (s *State) UpsertTask(t domain.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.tasks[t.ID]
	s.tasks[t.ID] = t
	s.version++
	return !existed
}

func (s *State) RemoveTask(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.tasks[id]
	delete(s.tasks, id)
	s.version++
	return existed
}

func (s *State) UpsertMember(m domain.Membership) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.members[m.ID]
	s.members[m.ID] = m
	s.version++
	return !existed
}

func (s *State) RemoveMember(id uuid.UUID) (domain.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, existed := s.members[id]
	delete(s.members, id)
	s.version++
	return m, existed
}

// ApplyChanges writes placements produced by the ordering model into the
// cache. Changes for tasks that are no longer cached are skipped.
func (s *State) ApplyChanges(changes []ordering.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		t, ok := s.tasks[c.TaskID]
		if !ok {
			continue
		}
		t.ColumnID = c.ColumnID
		t.Position = c.Position
		s.tasks[c.TaskID] = t
	}
	s.version++
}
