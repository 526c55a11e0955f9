package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/lanes/internal/domain"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool          *pgxpool.Pool
	users         *UserRepo
	boards        *BoardRepo
	members       *MemberRepo
	columns       *ColumnRepo
	tasks         *TaskRepo
	notifications *NotificationRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		users:         NewUserRepo(pool),
		boards:        NewBoardRepo(pool),
		members:       NewMemberRepo(pool),
		columns:       NewColumnRepo(pool),
		tasks:         NewTaskRepo(pool),
		notifications: NewNotificationRepo(pool),
	}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Boards() domain.BoardRepository               { return s.boards }
func (s *Store) Members() domain.MembershipRepository         { return s.members }
func (s *Store) Columns() domain.ColumnRepository             { return s.columns }
func (s *Store) Tasks() domain.TaskRepository                 { return s.tasks }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err references a missing parent row.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// writeErr maps constraint failures to domain errors.
func writeErr(caller string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", caller, domain.ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", caller, err)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
