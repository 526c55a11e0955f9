package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/lanes/internal/domain"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, column_id, title, content, deadline, position,
		        assigned_to, assigned_by, assigned_at, created_at`

// Create inserts t, appending it after the column's last task when
// t.Position is not positive. The stored position is written back to t.
func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (id, column_id, title, content, deadline, position, assigned_to, assigned_by, assigned_at, created_at)
		 VALUES ($1, $2, $3, $4, $5,
		         CASE WHEN $6::integer > 0 THEN $6::integer
		              ELSE (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE column_id = $2) END,
		         $7, $8, $9, $10)
		 RETURNING position`,
		t.ID, t.ColumnID, t.Title, nilIfEmpty(t.Content), t.Deadline, t.Position,
		t.AssignedTo, t.AssignedBy, t.AssignedAt, t.CreatedAt,
	).Scan(&t.Position)
	if err != nil {
		return writeErr("taskRepo.Create", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

// ListByColumns returns every task whose column is in columnIDs, ordered by
// position.
func (r *TaskRepo) ListByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error) {
	if len(columnIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks WHERE column_id = ANY($1)
		 ORDER BY position, created_at
		 LIMIT 5000`,
		columnIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByColumns: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByColumns")
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET title = $1, content = $2, deadline = $3 WHERE id = $4`,
		t.Title, nilIfEmpty(t.Content), t.Deadline, t.ID,
	)
	if err != nil {
		return writeErr("taskRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

// UpdatePlacement overwrites column_id and position together.
func (r *TaskRepo) UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET column_id = $1, position = $2 WHERE id = $3`,
		columnID, position, id,
	)
	if err != nil {
		return writeErr("taskRepo.UpdatePlacement", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.UpdatePlacement: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) UpdateAssignment(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET assigned_to = $1, assigned_by = $2, assigned_at = $3 WHERE id = $4`,
		t.AssignedTo, t.AssignedBy, t.AssignedAt, t.ID,
	)
	if err != nil {
		return writeErr("taskRepo.UpdateAssignment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.UpdateAssignment: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

// ListAssignedDue returns assigned tasks whose deadline falls in [from, to],
// joined with their board.
func (r *TaskRepo) ListAssignedDue(ctx context.Context, from, to time.Time) ([]*domain.DueTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.column_id, t.title, t.content, t.deadline, t.position,
		        t.assigned_to, t.assigned_by, t.assigned_at, t.created_at, c.board_id
		 FROM tasks t JOIN columns c ON c.id = t.column_id
		 WHERE t.assigned_to IS NOT NULL
		   AND t.deadline BETWEEN $1::date AND $2::date
		 ORDER BY t.deadline
		 LIMIT 5000`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListAssignedDue: %w", err)
	}
	defer rows.Close()

	var due []*domain.DueTask
	for rows.Next() {
		var (
			dt      domain.DueTask
			content *string
		)
		t := &dt.Task
		if err := rows.Scan(
			&t.ID, &t.ColumnID, &t.Title, &content, &t.Deadline, &t.Position,
			&t.AssignedTo, &t.AssignedBy, &t.AssignedAt, &t.CreatedAt, &dt.BoardID,
		); err != nil {
			return nil, fmt.Errorf("taskRepo.ListAssignedDue: scan: %w", err)
		}
		t.Content = derefStr(content)
		due = append(due, &dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskRepo.ListAssignedDue: rows: %w", err)
	}

	return due, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t       domain.Task
		content *string
	)
	if err := row.Scan(
		&t.ID, &t.ColumnID, &t.Title, &content, &t.Deadline, &t.Position,
		&t.AssignedTo, &t.AssignedBy, &t.AssignedAt, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Content = derefStr(content)
	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}
