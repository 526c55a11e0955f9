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

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

const memberColumns = `id, board_id, user_id, role, status, created_at`

func (r *MemberRepo) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO board_members (id, board_id, user_id, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.BoardID, m.UserID, m.Role, m.Status, m.CreatedAt,
	)
	if err != nil {
		return writeErr("memberRepo.Create", err)
	}

	return nil
}

func (r *MemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	return r.getOne(ctx, "memberRepo.GetByID",
		`SELECT `+memberColumns+` FROM board_members WHERE id = $1`, id)
}

func (r *MemberRepo) GetByBoardAndUser(ctx context.Context, boardID, userID uuid.UUID) (*domain.Membership, error) {
	return r.getOne(ctx, "memberRepo.GetByBoardAndUser",
		`SELECT `+memberColumns+` FROM board_members WHERE board_id = $1 AND user_id = $2`, boardID, userID)
}

func (r *MemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM board_members WHERE board_id = $1 ORDER BY created_at`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows, "memberRepo.ListByBoard")
}

func (r *MemberRepo) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM board_members
		 WHERE user_id = $1 AND status = 'pending'
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListPendingByUser: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows, "memberRepo.ListPendingByUser")
}

func (r *MemberRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return r.exec(ctx, "memberRepo.UpdateRole", `UPDATE board_members SET role = $1 WHERE id = $2`, role, id)
}

func (r *MemberRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MemberStatus) error {
	return r.exec(ctx, "memberRepo.UpdateStatus", `UPDATE board_members SET status = $1 WHERE id = $2`, status, id)
}

func (r *MemberRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "memberRepo.Delete", `DELETE FROM board_members WHERE id = $1`, id)
}

func (r *MemberRepo) exec(ctx context.Context, caller, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return writeErr(caller, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}

	return nil
}

func (r *MemberRepo) getOne(ctx context.Context, caller, query string, args ...any) (*domain.Membership, error) {
	var m domain.Membership

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.BoardID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	return &m, nil
}

func scanMembers(rows pgx.Rows, caller string) ([]*domain.Membership, error) {
	var members []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ID, &m.BoardID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return members, nil
}
