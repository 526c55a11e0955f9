package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), userID, "user@example.com")
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users         *mockUserRepo
	boards        *mockBoardRepo
	members       *mockMemberRepo
	columns       *mockColumnRepo
	tasks         *mockTaskRepo
	notifications *mockNotificationRepo
}

func (m *mockDataStore) Users() domain.UserRepository                 { return m.users }
func (m *mockDataStore) Boards() domain.BoardRepository               { return m.boards }
func (m *mockDataStore) Members() domain.MembershipRepository         { return m.members }
func (m *mockDataStore) Columns() domain.ColumnRepository             { return m.columns }
func (m *mockDataStore) Tasks() domain.TaskRepository                 { return m.tasks }
func (m *mockDataStore) Notifications() domain.NotificationRepository { return m.notifications }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc      func(ctx context.Context, b *domain.Board) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	listForUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.Board) error {
	return m.createFunc(ctx, b)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	return m.listForUserFunc(ctx, userID)
}

func (m *mockBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock MembershipRepository
// ---------------------------------------------------------------------------

type mockMemberRepo struct {
	createFunc            func(ctx context.Context, m *domain.Membership) error
	getByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.Membership, error)
	getByBoardAndUserFunc func(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error)
	listByBoardFunc       func(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error)
	listPendingByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error)
	updateRoleFunc        func(ctx context.Context, id uuid.UUID, role domain.Role) error
	updateStatusFunc      func(ctx context.Context, id uuid.UUID, status domain.MemberStatus) error
	deleteFunc            func(ctx context.Context, id uuid.UUID) error
}

func (m *mockMemberRepo) Create(ctx context.Context, mem *domain.Membership) error {
	return m.createFunc(ctx, mem)
}

func (m *mockMemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockMemberRepo) GetByBoardAndUser(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	return m.getByBoardAndUserFunc(ctx, boardID, userID)
}

func (m *mockMemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockMemberRepo) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	return m.listPendingByUserFunc(ctx, userID)
}

func (m *mockMemberRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return m.updateRoleFunc(ctx, id, role)
}

func (m *mockMemberRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MemberStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockMemberRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ColumnRepository
// ---------------------------------------------------------------------------

type mockColumnRepo struct {
	createFunc      func(ctx context.Context, c *domain.Column) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Column, error)
	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error)
	updateFunc      func(ctx context.Context, c *domain.Column) error
	deleteFunc      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockColumnRepo) Create(ctx context.Context, c *domain.Column) error {
	return m.createFunc(ctx, c)
}

func (m *mockColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockColumnRepo) Update(ctx context.Context, c *domain.Column) error {
	return m.updateFunc(ctx, c)
}

func (m *mockColumnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock TaskRepository
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	createFunc           func(ctx context.Context, t *domain.Task) error
	getByIDFunc          func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listByColumnsFunc    func(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error)
	updateFunc           func(ctx context.Context, t *domain.Task) error
	updatePlacementFunc  func(ctx context.Context, id, columnID uuid.UUID, position int) error
	updateAssignmentFunc func(ctx context.Context, t *domain.Task) error
	deleteFunc           func(ctx context.Context, id uuid.UUID) error
	listAssignedDueFunc  func(ctx context.Context, from, to time.Time) ([]*domain.DueTask, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	return m.createFunc(ctx, t)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTaskRepo) ListByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error) {
	return m.listByColumnsFunc(ctx, columnIDs)
}

func (m *mockTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTaskRepo) UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error {
	return m.updatePlacementFunc(ctx, id, columnID, position)
}

func (m *mockTaskRepo) UpdateAssignment(ctx context.Context, t *domain.Task) error {
	return m.updateAssignmentFunc(ctx, t)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockTaskRepo) ListAssignedDue(ctx context.Context, from, to time.Time) ([]*domain.DueTask, error) {
	return m.listAssignedDueFunc(ctx, from, to)
}

// ---------------------------------------------------------------------------
// Mock NotificationRepository
// ---------------------------------------------------------------------------

type mockNotificationRepo struct {
	createFunc      func(ctx context.Context, n *domain.Notification) error
	listByUserFunc  func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	markReadFunc    func(ctx context.Context, userID, id uuid.UUID) error
	markAllReadFunc func(ctx context.Context, userID uuid.UUID) (int64, error)
	existsSinceFunc func(ctx context.Context, userID, taskID uuid.UUID, typ domain.NotificationType, since time.Time) (bool, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return m.createFunc(ctx, n)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	return m.listByUserFunc(ctx, userID, limit)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return m.markReadFunc(ctx, userID, id)
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.markAllReadFunc(ctx, userID)
}

func (m *mockNotificationRepo) ExistsSince(ctx context.Context, userID, taskID uuid.UUID, typ domain.NotificationType, since time.Time) (bool, error) {
	return m.existsSinceFunc(ctx, userID, taskID, typ, since)
}

// ---------------------------------------------------------------------------
// Board fixture
// ---------------------------------------------------------------------------

// fixture is one board with an owner, an accepted editor, an accepted
// viewer, a pending invitee and a stranger. Columns "To Do" and "Done" hold
// one task each.
type fixture struct {
	owner, editor, viewer, pending, stranger uuid.UUID

	board       *domain.Board
	todo, done  *domain.Column
	task, other *domain.Task
	memberships map[uuid.UUID]*domain.Membership
}

func newFixture() *fixture {
	f := &fixture{
		owner:    uuid.New(),
		editor:   uuid.New(),
		viewer:   uuid.New(),
		pending:  uuid.New(),
		stranger: uuid.New(),
	}
	f.board = &domain.Board{ID: uuid.New(), Name: "Sprint", OwnerID: f.owner, CreatedAt: time.Now()}
	one, two := 1, 2
	f.todo = &domain.Column{ID: uuid.New(), BoardID: f.board.ID, Name: "To Do", Position: 1, ColorIndex: &one}
	f.done = &domain.Column{ID: uuid.New(), BoardID: f.board.ID, Name: "Done", Position: 2, ColorIndex: &two}
	f.task = &domain.Task{ID: uuid.New(), ColumnID: f.todo.ID, Title: "Write docs", Position: 1}
	f.other = &domain.Task{ID: uuid.New(), ColumnID: f.done.ID, Title: "Ship", Position: 1}

	f.memberships = map[uuid.UUID]*domain.Membership{}
	add := func(user uuid.UUID, role domain.Role, status domain.MemberStatus) {
		f.memberships[user] = &domain.Membership{
			ID: uuid.New(), BoardID: f.board.ID, UserID: user, Role: role, Status: status,
		}
	}
	add(f.editor, domain.RoleEditor, domain.MemberStatusAccepted)
	add(f.viewer, domain.RoleViewer, domain.MemberStatusAccepted)
	add(f.pending, domain.RoleEditor, domain.MemberStatusPending)
	return f
}

// store returns a mockDataStore whose lookups answer from the fixture. Tests
// set the write funcs they expect to be called.
func (f *fixture) store() *mockDataStore {
	return &mockDataStore{
		users: &mockUserRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
				return &domain.User{ID: id, Email: id.String()[:8] + "@example.com"}, nil
			},
		},
		boards: &mockBoardRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
				if id != f.board.ID {
					return nil, domain.ErrNotFound
				}
				b := *f.board
				return &b, nil
			},
		},
		members: &mockMemberRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Membership, error) {
				for _, m := range f.memberships {
					if m.ID == id {
						cp := *m
						return &cp, nil
					}
				}
				return nil, domain.ErrNotFound
			},
			getByBoardAndUserFunc: func(_ context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
				m, ok := f.memberships[userID]
				if !ok || boardID != f.board.ID {
					return nil, domain.ErrNotFound
				}
				cp := *m
				return &cp, nil
			},
		},
		columns: &mockColumnRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Column, error) {
				for _, c := range []*domain.Column{f.todo, f.done} {
					if c.ID == id {
						cp := *c
						return &cp, nil
					}
				}
				return nil, domain.ErrNotFound
			},
			listByBoardFunc: func(_ context.Context, _ uuid.UUID) ([]*domain.Column, error) {
				a, b := *f.todo, *f.done
				return []*domain.Column{&a, &b}, nil
			},
		},
		tasks: &mockTaskRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
				for _, t := range []*domain.Task{f.task, f.other} {
					if t.ID == id {
						cp := *t
						return &cp, nil
					}
				}
				return nil, domain.ErrNotFound
			},
		},
		notifications: &mockNotificationRepo{},
	}
}
