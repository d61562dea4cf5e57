package tr

import (
	"context"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// WithTx кладёт транзакцию в контекст. tx — результат Transaction() менеджера транзакций.
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromCtx извлекает объект транзакции (pgx.Tx) из контекста
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	txAny := ctx.Value(txKey{})
	tx, ok := txAny.(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}

// Querier — общее подмножество pgxpool.Pool и pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFromCtx возвращает транзакцию из контекста, если она есть, иначе fallback.
func QuerierFromCtx(ctx context.Context, fallback Querier) Querier {
	if tx, err := TxFromCtx(ctx); err == nil {
		return tx
	}
	return fallback
}
