package changefeed

import "github.com/gosuda/lanes/internal/domain"

// Repositories is the repository accessor set of a row store.
type Repositories interface {
	Users() domain.UserRepository
	Boards() domain.BoardRepository
	Members() domain.MembershipRepository
	Columns() domain.ColumnRepository
	Tasks() domain.TaskRepository
	Notifications() domain.NotificationRepository
}

// Store wraps a row store so that column, task, membership and notification
// writes are published. Reads pass straight through.
type Store struct {
	base          Repositories
	members       *MemberRepo
	columns       *ColumnRepo
	tasks         *TaskRepo
	notifications *NotificationRepo
}

func NewStore(base Repositories, pub *Publisher) *Store {
	return &Store{
		base:          base,
		members:       NewMemberRepo(base.Members(), pub),
		columns:       NewColumnRepo(base.Columns(), pub),
		tasks:         NewTaskRepo(base.Tasks(), base.Columns(), pub),
		notifications: NewNotificationRepo(base.Notifications(), pub),
	}
}

func (s *Store) Users() domain.UserRepository                 { return s.base.Users() }
func (s *Store) Boards() domain.BoardRepository               { return s.base.Boards() }
func (s *Store) Members() domain.MembershipRepository         { return s.members }
func (s *Store) Columns() domain.ColumnRepository             { return s.columns }
func (s *Store) Tasks() domain.TaskRepository                 { return s.tasks }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }
