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

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO boards (id, name, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Name, b.OwnerID, b.CreatedAt,
	)
	if err != nil {
		return writeErr("boardRepo.Create", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	var b domain.Board

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, user_id, created_at FROM boards WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.OwnerID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

// ListForUser returns boards the user owns or has accepted an invitation to,
// newest first.
func (r *BoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.name, b.user_id, b.created_at
		 FROM boards b
		 WHERE b.user_id = $1
		    OR EXISTS (SELECT 1 FROM board_members m
		               WHERE m.board_id = b.id AND m.user_id = $1 AND m.status = 'accepted')
		 ORDER BY b.created_at DESC
		 LIMIT 500`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListForUser: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.ListForUser: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.ListForUser: rows: %w", err)
	}

	return boards, nil
}

func (r *BoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
