package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes this package reacts to
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Products  ProductRepository
	Customers CustomerRepository
	Sales     SaleRepository
}

// TxRunner runs fn inside a single database transaction. If fn returns an
// error every effect is rolled back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

// Store hands out repositories and transactions over one pool
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore creates a Store. lockTimeout bounds how long a transaction waits
// for a row lock before failing with a contention error; zero means wait forever.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// Repositories returns repositories bound to the pool
func (s *Store) Repositories() Repositories {
	return newRepositories(s.db)
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Products:  NewProductRepository(db),
		Customers: NewCustomerRepository(db),
		Sales:     NewSaleRepository(db),
	}
}

// RunInTx implements TxRunner
func (s *Store) RunInTx(ctx context.Context, fn func(repos Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`,
			fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(newRepositories(tx)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify turns lock and serialization failures into a retryable
// ContentionError and leaves every other error untouched
func classify(err error) error {
	var contention *domain.ContentionError
	if errors.As(err, &contention) {
		return err
	}
	if isContention(err) {
		return &domain.ContentionError{Err: err}
	}
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}

func isContention(err error) bool {
	switch pgCode(err) {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
		return true
	}
	return false
}
