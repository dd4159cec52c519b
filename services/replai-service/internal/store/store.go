// Package store persists users, connected mailboxes and message records in
// Postgres through a pgx pool.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

// Store is the Postgres-backed record store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// translate maps driver errors onto the apperr taxonomy. notFound is the
// sentinel returned for pgx.ErrNoRows.
func translate(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return apperr.Persistence(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
