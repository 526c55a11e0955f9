package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/lanes/internal/board"
	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/notice"
	"github.com/gosuda/lanes/internal/realtime"
)

// fakeFeed hands out one channel per subscription and tracks releases.
type fakeFeed struct {
	mu       sync.Mutex
	subs     []chan domain.ChangeEvent
	boards   []uuid.UUID
	released int
	err      error
}

func (f *fakeFeed) Subscribe(_ context.Context, boardID uuid.UUID) (<-chan domain.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	ch := make(chan domain.ChangeEvent, 16)
	f.subs = append(f.subs, ch)
	f.boards = append(f.boards, boardID)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.released++
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeFeed) send(i int, ev domain.ChangeEvent) {
	f.mu.Lock()
	ch := f.subs[i]
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeFeed) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeFetcher struct {
	mu    sync.Mutex
	loads []uuid.UUID
	err   error
}

func (f *fakeFetcher) Load(_ context.Context, boardID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, boardID)
	return f.err
}

type fixture struct {
	feed    *fakeFeed
	fetcher *fakeFetcher
	state   *board.State
	session *board.Session
	notices *notice.Recorder
	rec     *realtime.Reconciler
	boardID uuid.UUID
	ownerID uuid.UUID
	me      uuid.UUID
	column  uuid.UUID
	task    domain.Task
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		feed:    &fakeFeed{},
		fetcher: &fakeFetcher{},
		notices: &notice.Recorder{},
		boardID: uuid.New(),
		ownerID: uuid.New(),
		me:      uuid.New(),
		column:  uuid.New(),
	}
	f.task = domain.Task{ID: uuid.New(), ColumnID: f.column, Title: "write docs", Position: 1}
	f.state = board.NewState()
	f.state.Replace(board.Snapshot{
		Board:   domain.Board{ID: f.boardID, OwnerID: f.ownerID},
		Columns: []*domain.Column{{ID: f.column, BoardID: f.boardID, Position: 1}},
		Tasks:   []*domain.Task{&f.task},
	})
	f.session = board.NewSession(domain.User{ID: f.me})
	f.session.SetRole(domain.RoleEditor)
	f.rec = realtime.New(f.feed, f.fetcher, f.state, f.session, f.notices, zerolog.Nop())
	t.Cleanup(f.rec.Unsubscribe)
	return f
}

func event(t *testing.T, kind domain.ChangeKind, table domain.Table, boardID uuid.UUID, row any) domain.ChangeEvent {
	t.Helper()

	var oldRow, newRow any
	if kind == domain.ChangeDelete {
		oldRow = row
	} else {
		newRow = row
	}
	ev, err := domain.NewChangeEvent(kind, table, boardID, oldRow, newRow)
	require.NoError(t, err)
	return ev
}

func TestApply_UpdateOverwritesOptimisticState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	optimistic := f.task
	optimistic.Position = 7
	f.state.UpsertTask(optimistic)

	remote := f.task
	remote.Position = 2
	remote.Title = "write better docs"
	f.rec.Apply(f.boardID, event(t, domain.ChangeUpdate, domain.TableTasks, f.boardID, remote))

	got, ok := f.state.Task(f.task.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, "write better docs", got.Title)
}

func TestApply_DuplicateInsertUpserts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	task := domain.Task{ID: uuid.New(), ColumnID: f.column, Title: "new", Position: 2}

	ev := event(t, domain.ChangeInsert, domain.TableTasks, f.boardID, task)
	f.rec.Apply(f.boardID, ev)
	f.rec.Apply(f.boardID, ev)

	assert.Len(t, f.state.ColumnTasks(f.column), 2)
}

func TestApply_TaskDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Apply(f.boardID, event(t, domain.ChangeDelete, domain.TableTasks, f.boardID, domain.Task{ID: f.task.ID}))

	_, ok := f.state.Task(f.task.ID)
	assert.False(t, ok)
}

func TestApply_ColumnDeleteCascades(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.Apply(f.boardID, event(t, domain.ChangeDelete, domain.TableColumns, f.boardID, domain.Column{ID: f.column}))

	_, ok := f.state.Column(f.column)
	assert.False(t, ok)
	assert.Empty(t, f.state.Tasks())
}

func TestApply_ColumnInsertAndForeignRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	col := domain.Column{ID: uuid.New(), BoardID: f.boardID, Name: "Review", Position: 2}
	f.rec.Apply(f.boardID, event(t, domain.ChangeInsert, domain.TableColumns, f.boardID, col))
	assert.Len(t, f.state.Columns(), 2)

	foreign := domain.Column{ID: uuid.New(), BoardID: uuid.New(), Name: "Elsewhere"}
	f.rec.Apply(f.boardID, event(t, domain.ChangeInsert, domain.TableColumns, f.boardID, foreign))
	f.rec.Apply(f.boardID, event(t, domain.ChangeInsert, domain.TableColumns, foreign.BoardID, foreign))
	assert.Len(t, f.state.Columns(), 2)
}

func TestApply_MalformedEventsAreSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	before := f.state.Version()

	bad := []domain.ChangeEvent{
		{Kind: domain.ChangeInsert, Table: domain.TableTasks, BoardID: f.boardID, New: json.RawMessage(`{"id":`)},
		{Kind: domain.ChangeInsert, Table: domain.TableTasks, BoardID: f.boardID, New: json.RawMessage(`{"title":"no id"}`)},
		{Kind: domain.ChangeUpdate, Table: domain.TableColumns, BoardID: f.boardID},
		{Kind: "truncate", Table: domain.TableTasks, BoardID: f.boardID, New: json.RawMessage(`{"id":"` + uuid.NewString() + `"}`)},
		{Kind: domain.ChangeInsert, Table: "boards", BoardID: f.boardID, New: json.RawMessage(`{}`)},
	}
	for _, ev := range bad {
		f.rec.Apply(f.boardID, ev)
	}

	assert.Equal(t, before, f.state.Version())
}

func TestApply_MissingPositionSortsLast(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := uuid.New()
	raw := json.RawMessage(`{"id":"` + id.String() + `","column_id":"` + f.column.String() + `","title":"unplaced"}`)
	f.rec.Apply(f.boardID, domain.ChangeEvent{Kind: domain.ChangeInsert, Table: domain.TableTasks, BoardID: f.boardID, New: raw})

	tasks := f.state.ColumnTasks(f.column)
	require.Len(t, tasks, 2)
	assert.Equal(t, id, tasks[1].ID)
}

func TestApply_SelfMembership(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     domain.ChangeKind
		member   func(f *fixture) domain.Membership
		wantRole domain.Role
		wantLvl  notice.Level
	}{
		{
			name: "downgraded to viewer",
			kind: domain.ChangeUpdate,
			member: func(f *fixture) domain.Membership {
				return domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: f.me, Role: domain.RoleViewer, Status: domain.MemberStatusAccepted}
			},
			wantRole: domain.RoleViewer,
			wantLvl:  notice.LevelInfo,
		},
		{
			name: "removed",
			kind: domain.ChangeDelete,
			member: func(f *fixture) domain.Membership {
				return domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: f.me}
			},
			wantRole: domain.RoleNone,
			wantLvl:  notice.LevelWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.rec.Apply(f.boardID, event(t, tt.kind, domain.TableMembers, f.boardID, tt.member(f)))

			assert.Equal(t, tt.wantRole, f.session.Role())
			got := f.notices.All()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantLvl, got[0].Level)
		})
	}
}

func TestApply_OtherMembersAndUnchangedRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	other := domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: uuid.New(), Role: domain.RoleViewer, Status: domain.MemberStatusAccepted}
	f.rec.Apply(f.boardID, event(t, domain.ChangeInsert, domain.TableMembers, f.boardID, other))
	assert.Len(t, f.state.Members(), 1)

	same := domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: f.me, Role: domain.RoleEditor, Status: domain.MemberStatusAccepted}
	f.rec.Apply(f.boardID, event(t, domain.ChangeUpdate, domain.TableMembers, f.boardID, same))

	assert.Equal(t, domain.RoleEditor, f.session.Role())
	assert.Empty(t, f.notices.All())
	assert.Len(t, f.state.Members(), 2)
}

func TestApply_DeleteWithoutUserResolvesFromCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mine := domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: f.me, Role: domain.RoleEditor, Status: domain.MemberStatusAccepted}
	f.state.UpsertMember(mine)

	f.rec.Apply(f.boardID, event(t, domain.ChangeDelete, domain.TableMembers, f.boardID, domain.Membership{ID: mine.ID}))

	assert.Equal(t, domain.RoleNone, f.session.Role())
	assert.Empty(t, f.state.Members())
}

func TestApply_OwnerRoleIsNeverChanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := board.NewSession(domain.User{ID: f.ownerID})
	owner.SetRole(domain.RoleOwner)
	rec := realtime.New(f.feed, f.fetcher, f.state, owner, f.notices, zerolog.Nop())

	m := domain.Membership{ID: uuid.New(), BoardID: f.boardID, UserID: f.ownerID, Role: domain.RoleViewer, Status: domain.MemberStatusAccepted}
	rec.Apply(f.boardID, event(t, domain.ChangeUpdate, domain.TableMembers, f.boardID, m))

	assert.Equal(t, domain.RoleOwner, owner.Role())
	assert.Empty(t, f.notices.All())
}

func TestSubscribe_ReplacesPreviousAndReloads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.Subscribe(ctx, f.boardID))
	require.NoError(t, f.rec.Subscribe(ctx, f.boardID))

	assert.Equal(t, 1, f.feed.releasedCount(), "first subscription released")
	assert.Equal(t, []uuid.UUID{f.boardID, f.boardID}, f.fetcher.loads)

	// Only the live subscription is consumed.
	task := domain.Task{ID: uuid.New(), ColumnID: f.column, Position: 2}
	f.feed.send(1, event(t, domain.ChangeInsert, domain.TableTasks, f.boardID, task))

	require.Eventually(t, func() bool {
		_, ok := f.state.Task(task.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	got, ok := f.rec.Subscribed()
	assert.True(t, ok)
	assert.Equal(t, f.boardID, got)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.rec.Subscribe(context.Background(), f.boardID))

	f.rec.Unsubscribe()
	assert.Equal(t, 1, f.feed.releasedCount())
	_, ok := f.rec.Subscribed()
	assert.False(t, ok)

	before := f.state.Version()
	f.feed.send(0, event(t, domain.ChangeInsert, domain.TableTasks, f.boardID, domain.Task{ID: uuid.New(), ColumnID: f.column}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, f.state.Version())

	f.rec.Unsubscribe()
	require.NoError(t, f.rec.Close())
	assert.Equal(t, 1, f.feed.releasedCount())
}

func TestSubscribe_FeedClosedThenResubscribe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.rec.Subscribe(context.Background(), f.boardID))

	f.feed.mu.Lock()
	close(f.feed.subs[0])
	f.feed.mu.Unlock()

	require.Eventually(t, func() bool {
		_, ok := f.rec.Subscribed()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.rec.Subscribe(context.Background(), f.boardID))
	_, ok := f.rec.Subscribed()
	assert.True(t, ok)
	assert.Len(t, f.fetcher.loads, 2)
}

func TestSubscribe_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.feed.err = errors.New("feed down")
	require.ErrorIs(t, f.rec.Subscribe(context.Background(), f.boardID), f.feed.err)
	_, ok := f.rec.Subscribed()
	assert.False(t, ok)

	g := newFixture(t)
	g.fetcher.err = errors.New("fetch failed")
	require.ErrorIs(t, g.rec.Subscribe(context.Background(), g.boardID), g.fetcher.err)
	_, ok = g.rec.Subscribed()
	assert.True(t, ok, "subscription survives a failed reload")
}

func TestApply_IgnoresOtherBoards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	before := f.state.Version()
	other := uuid.New()
	f.rec.Apply(f.boardID, event(t, domain.ChangeInsert, domain.TableTasks, other, domain.Task{ID: uuid.New(), ColumnID: f.column}))
	assert.Equal(t, before, f.state.Version())
}

// gatedFetcher blocks the load of one board until released.
type gatedFetcher struct {
	fakeFetcher
	hold    uuid.UUID
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedFetcher) Load(ctx context.Context, boardID uuid.UUID) error {
	if boardID == g.hold {
		close(g.entered)
		<-g.gate
	}
	return g.fakeFetcher.Load(ctx, boardID)
}

func TestSubscribe_ConcurrentSwitchesReloadInOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()
	fetcher := &gatedFetcher{hold: first, entered: make(chan struct{}), gate: make(chan struct{})}
	rec := realtime.New(f.feed, fetcher, f.state, f.session, f.notices, zerolog.Nop())
	t.Cleanup(rec.Unsubscribe)

	errc := make(chan error, 2)
	go func() { errc <- rec.Subscribe(ctx, first) }()
	<-fetcher.entered

	go func() { errc <- rec.Subscribe(ctx, second) }()
	// The second switch must not overtake the pending reload of the first.
	time.Sleep(20 * time.Millisecond)
	fetcher.mu.Lock()
	assert.Empty(t, fetcher.loads)
	fetcher.mu.Unlock()

	close(fetcher.gate)
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)

	fetcher.mu.Lock()
	assert.Equal(t, []uuid.UUID{first, second}, fetcher.loads)
	fetcher.mu.Unlock()

	got, ok := rec.Subscribed()
	require.True(t, ok)
	assert.Equal(t, second, got)
}
