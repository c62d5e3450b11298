package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, letting generic CRUD
// helpers run inside or outside a transaction transparently.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type txKey struct{}

// ContextWithTx returns a context carrying tx, so nested gateway calls reuse
// the same unit of work instead of opening a second connection.
func ContextWithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stashed by ContextWithTx, if any.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// Gateway is the persistence gateway: a pooled sqlx handle plus the
// context-scoped transaction helper every per-kind repository builds its
// generic CRUD calls on top of.
type Gateway struct {
	DB   *sqlx.DB
	Pool *Pool
}

// NewGateway wraps db with a bounded blocking-call pool.
func NewGateway(db *sqlx.DB, poolSize int) *Gateway {
	return &Gateway{DB: db, Pool: NewPool(poolSize)}
}

// Querier returns the transaction in ctx if one was opened via WithTx,
// otherwise the gateway's shared DB handle.
func (g *Gateway) Querier(ctx context.Context) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return g.DB
}

// WithTx opens a unit of work, runs fn with a context carrying the
// transaction, and commits on success or rolls back on error/panic. This
// backs the lifecycle engine's Create pipeline ("open a unit of work ...
// commit").
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := g.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(ContextWithTx(ctx, tx))
	return err
}
