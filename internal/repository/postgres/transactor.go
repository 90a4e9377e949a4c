package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

var _ record.Transactor = (*Transactor)(nil)

// Transactor runs a unit of work inside one read-committed transaction.
// Repos pick the transaction up from the context.
type Transactor struct {
	db  *DB
	log *zap.Logger
}

func NewTransactor(db *DB, log *zap.Logger) *Transactor {
	return &Transactor{db: db, log: log.With(zap.String("component", "pg_transactor"))}
}

// WithTx commits when fn returns nil and rolls back otherwise. A nested
// call joins the transaction already in ctx.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	err := pgx.BeginTxFunc(ctx, t.db.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		t.log.Debug("transaction rolled back", zap.Error(err))
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// conn returns the transaction bound to ctx, or the pool.
func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
