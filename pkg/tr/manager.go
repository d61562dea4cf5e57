package tr

import (
	"context"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// Manager открывает транзакции на пуле и кладёт их в контекст.
type Manager struct {
	db transaction.Transactional
}

func NewManager(db transaction.Transactional) *Manager {
	return &Manager{db: db}
}

// WithinTx выполняет fn в транзакции. Ошибка fn или коммита откатывает транзакцию.
func (m *Manager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, m.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(WithTx(ctx, tx.Transaction())); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
