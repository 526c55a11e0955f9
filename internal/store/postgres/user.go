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

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, nilIfEmpty(u.Username), u.CreatedAt,
	)
	if err != nil {
		return writeErr("userRepo.Create", err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "userRepo.GetByID",
		`SELECT id, email, username, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "userRepo.GetByEmail",
		`SELECT id, email, username, created_at FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepo) getOne(ctx context.Context, caller, query string, arg any) (*domain.User, error) {
	var u domain.User
	var username *string

	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	u.Username = derefStr(username)
	return &u, nil
}
