// Package storage is the Postgres collaborator of the booking engine.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agendly/agendly/libs/db"
)

var ErrNotFound = errors.New("not found")

// DB is satisfied by *db.Pool and by pgxmock pools in tests.
type DB interface {
	db.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository runs every statement through q, which is either the pool or the
// transaction opened by InTx.
type Repository struct {
	db DB
	q  db.Querier
}

func NewRepository(d DB) *Repository {
	return &Repository{db: d, q: d}
}

// InTx runs fn against a repository bound to a new transaction. fn's error rolls
// the transaction back.
func (r *Repository) InTx(ctx context.Context, fn func(*Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsConflict reports whether err is an exclusion (23P01) or unique (23505) violation,
// i.e. a concurrent booking won the race.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
