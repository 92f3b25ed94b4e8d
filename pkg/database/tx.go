package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// WithinTx runs fn inside a database transaction carried by the context.
// Repositories called with the derived context join that transaction, so
// an entity update and its companion log row commit or roll back together.
// Nested calls reuse the outer transaction.
//
// Usage in services:
//
//	err := s.db.WithinTx(ctx, func(ctx context.Context) error {
//	    res, err := s.resources.GetForUpdate(ctx, id)
//	    ...
//	    return s.transactions.Create(ctx, tx)
//	})
func (db *DB) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Q returns the ambient transaction if there is one, else the pool.
func (db *DB) Q(ctx context.Context) Querier {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// Root always returns the pool, bypassing any ambient transaction. Writes
// that must survive a rollback of the surrounding operation go through it.
func (db *DB) Root() Querier {
	return db.DB
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	return getTx(ctx) != nil
}

func getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
