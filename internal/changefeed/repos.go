package changefeed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

// ColumnRepo publishes column changes after each successful write.
type ColumnRepo struct {
	domain.ColumnRepository
	pub *Publisher
}

func NewColumnRepo(next domain.ColumnRepository, pub *Publisher) *ColumnRepo {
	return &ColumnRepo{ColumnRepository: next, pub: pub}
}

func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column) error {
	if err := r.ColumnRepository.Create(ctx, c); err != nil {
		return err
	}
	r.pub.Change(ctx, domain.ChangeInsert, domain.TableColumns, c.BoardID, nil, c)
	return nil
}

func (r *ColumnRepo) Update(ctx context.Context, c *domain.Column) error {
	if err := r.ColumnRepository.Update(ctx, c); err != nil {
		return err
	}
	r.publishCurrent(ctx, c.ID)
	return nil
}

func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	old, err := r.ColumnRepository.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("changefeed.ColumnRepo.Delete: %w", err)
	}
	if err := r.ColumnRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.pub.Change(ctx, domain.ChangeDelete, domain.TableColumns, old.BoardID, old, nil)
	return nil
}

func (r *ColumnRepo) publishCurrent(ctx context.Context, id uuid.UUID) {
	c, err := r.ColumnRepository.GetByID(ctx, id)
	if err != nil {
		r.pub.logger.Warn().Err(err).Str("column_id", id.String()).Msg("reload column for change event")
		return
	}
	r.pub.Change(ctx, domain.ChangeUpdate, domain.TableColumns, c.BoardID, nil, c)
}

// TaskRepo publishes task changes after each successful write. Events are
// routed by the board of the task's column.
type TaskRepo struct {
	domain.TaskRepository
	columns domain.ColumnRepository
	pub     *Publisher
}

func NewTaskRepo(next domain.TaskRepository, columns domain.ColumnRepository, pub *Publisher) *TaskRepo {
	return &TaskRepo{TaskRepository: next, columns: columns, pub: pub}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	if err := r.TaskRepository.Create(ctx, t); err != nil {
		return err
	}
	r.publish(ctx, domain.ChangeInsert, t.ColumnID, nil, t)
	return nil
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	if err := r.TaskRepository.Update(ctx, t); err != nil {
		return err
	}
	r.publishCurrent(ctx, t.ID)
	return nil
}

func (r *TaskRepo) UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error {
	if err := r.TaskRepository.UpdatePlacement(ctx, id, columnID, position); err != nil {
		return err
	}
	r.publishCurrent(ctx, id)
	return nil
}

func (r *TaskRepo) UpdateAssignment(ctx context.Context, t *domain.Task) error {
	if err := r.TaskRepository.UpdateAssignment(ctx, t); err != nil {
		return err
	}
	r.publishCurrent(ctx, t.ID)
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	old, err := r.TaskRepository.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("changefeed.TaskRepo.Delete: %w", err)
	}
	if err := r.TaskRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.publish(ctx, domain.ChangeDelete, old.ColumnID, old, nil)
	return nil
}

func (r *TaskRepo) publishCurrent(ctx context.Context, id uuid.UUID) {
	t, err := r.TaskRepository.GetByID(ctx, id)
	if err != nil {
		r.pub.logger.Warn().Err(err).Str("task_id", id.String()).Msg("reload task for change event")
		return
	}
	r.publish(ctx, domain.ChangeUpdate, t.ColumnID, nil, t)
}

func (r *TaskRepo) publish(ctx context.Context, kind domain.ChangeKind, columnID uuid.UUID, oldRow, newRow *domain.Task) {
	col, err := r.columns.GetByID(ctx, columnID)
	if err != nil {
		r.pub.logger.Warn().Err(err).Str("column_id", columnID.String()).Msg("resolve board for task change")
		return
	}
	var o, n any
	if oldRow != nil {
		o = oldRow
	}
	if newRow != nil {
		n = newRow
	}
	r.pub.Change(ctx, kind, domain.TableTasks, col.BoardID, o, n)
}

// MemberRepo publishes membership changes after each successful write.
type MemberRepo struct {
	domain.MembershipRepository
	pub *Publisher
}

func NewMemberRepo(next domain.MembershipRepository, pub *Publisher) *MemberRepo {
	return &MemberRepo{MembershipRepository: next, pub: pub}
}

func (r *MemberRepo) Create(ctx context.Context, m *domain.Membership) error {
	if err := r.MembershipRepository.Create(ctx, m); err != nil {
		return err
	}
	r.pub.Change(ctx, domain.ChangeInsert, domain.TableMembers, m.BoardID, nil, m)
	return nil
}

func (r *MemberRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	if err := r.MembershipRepository.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	r.publishCurrent(ctx, id)
	return nil
}

func (r *MemberRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MemberStatus) error {
	if err := r.MembershipRepository.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	r.publishCurrent(ctx, id)
	return nil
}

func (r *MemberRepo) Delete(ctx context.Context, id uuid.UUID) error {
	old, err := r.MembershipRepository.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("changefeed.MemberRepo.Delete: %w", err)
	}
	if err := r.MembershipRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.pub.Change(ctx, domain.ChangeDelete, domain.TableMembers, old.BoardID, old, nil)
	return nil
}

func (r *MemberRepo) publishCurrent(ctx context.Context, id uuid.UUID) {
	m, err := r.MembershipRepository.GetByID(ctx, id)
	if err != nil {
		r.pub.logger.Warn().Err(err).Str("member_id", id.String()).Msg("reload membership for change event")
		return
	}
	r.pub.Change(ctx, domain.ChangeUpdate, domain.TableMembers, m.BoardID, nil, m)
}

// NotificationRepo pushes each created notification to its recipient.
type NotificationRepo struct {
	domain.NotificationRepository
	pub *Publisher
}

func NewNotificationRepo(next domain.NotificationRepository, pub *Publisher) *NotificationRepo {
	return &NotificationRepo{NotificationRepository: next, pub: pub}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if err := r.NotificationRepository.Create(ctx, n); err != nil {
		return err
	}
	r.pub.Notification(ctx, n)
	return nil
}
