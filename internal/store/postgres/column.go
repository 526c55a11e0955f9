package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/lanes/internal/domain"
)

type ColumnRepo struct {
	pool *pgxpool.Pool
}

func NewColumnRepo(pool *pgxpool.Pool) *ColumnRepo {
	return &ColumnRepo{pool: pool}
}

// Create inserts c, appending it after the board's last column when
// c.Position is not positive. The stored position is written back to c.
func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO columns (id, board_id, name, position, color_index, created_at)
		 VALUES ($1, $2, $3,
		         CASE WHEN $4::integer > 0 THEN $4::integer
		              ELSE (SELECT COALESCE(MAX(position), 0) + 1 FROM columns WHERE board_id = $2) END,
		         $5, $6)
		 RETURNING position`,
		c.ID, c.BoardID, c.Name, c.Position, c.ColorIndex, c.CreatedAt,
	).Scan(&c.Position)
	if err != nil {
		return writeErr("columnRepo.Create", err)
	}

	return nil
}

func (r *ColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	var c domain.Column

	err := r.pool.QueryRow(ctx,
		`SELECT id, board_id, name, position, color_index, created_at FROM columns WHERE id = $1`, id,
	).Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.ColorIndex, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", err)
	}

	return &c, nil
}

func (r *ColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, name, position, color_index, created_at
		 FROM columns WHERE board_id = $1
		 ORDER BY position, created_at`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var columns []*domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &c.ColorIndex, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("columnRepo.ListByBoard: scan: %w", err)
		}
		columns = append(columns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: rows: %w", err)
	}

	return columns, nil
}

func (r *ColumnRepo) Update(ctx context.Context, c *domain.Column) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE columns SET name = $1, position = $2, color_index = $3 WHERE id = $4`,
		c.Name, c.Position, c.ColorIndex, c.ID,
	)
	if err != nil {
		return writeErr("columnRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("columnRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

// Delete removes the column's tasks and then the column in one transaction.
func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE column_id = $1`, id); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM columns WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("columnRepo.Delete: %w", err)
	}

	return nil
}
