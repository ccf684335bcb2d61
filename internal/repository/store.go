package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/store"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, opts store.TxOptions, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tables{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit()
}

// IsRetryable reports serialization failures, deadlocks and lost
// connections.
func (s *Store) IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
		return pqErr.Code.Class() == "08"
	}
	return errors.Is(err, driver.ErrBadConn)
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// tables binds every repository to one transaction.
type tables struct {
	q querier
}

func (t *tables) Products() store.Products { return NewProductRepository(t.q) }
func (t *tables) Edges() store.Edges       { return NewComponentRepository(t.q) }
func (t *tables) Orders() store.Orders     { return NewOrderRepository(t.q) }
func (t *tables) Usage() store.Usage       { return NewUsageRepository(t.q) }
func (t *tables) History() store.History   { return NewHistoryRepository(t.q) }
func (t *tables) Events() store.Events     { return NewEventRepository(t.q) }

// pqCode returns the SQLSTATE and constraint of a PostgreSQL error.
func pqCode(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)
