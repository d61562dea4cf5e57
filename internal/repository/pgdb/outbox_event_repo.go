package pgdb

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/fashion-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// OutboxChannel — канал LISTEN/NOTIFY о новых событиях.
const OutboxChannel = "outbox_pending"

// insertEventQuery пропускает событие, если для товара уже есть ожидающее того же типа.
const insertEventQuery = `
	INSERT INTO outbox_events (
		event_id,
		event_type,
		product_id,
		payload,
		status
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (event_type, product_id) WHERE status = 'pending' DO NOTHING
`

type OutboxEventRepo struct {
	pool *pgxpool.Pool
	conv converter.OutboxEventConverter
	// stuckAfter — через сколько событие в processing считается брошенным.
	stuckAfter string
}

func NewOutboxEventRepo(pool *pgxpool.Pool) *OutboxEventRepo {
	return &OutboxEventRepo{
		pool:       pool,
		stuckAfter: "5 minutes",
	}
}

// Create записывает событие в транзакции из контекста и уведомляет воркер.
func (o *OutboxEventRepo) Create(ctx context.Context, event *usecase.OutboxEvent) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := o.conv.ToModel(event)
	if _, err := tx.Exec(ctx, insertEventQuery,
		model.EventID,
		model.EventType,
		model.ProductID,
		model.Payload,
		model.Status,
	); err != nil {
		return fmt.Errorf("%s: failed to insert event: %w", whereami.WhereAmI(), err)
	}

	if _, err = tx.Exec(ctx, "NOTIFY "+OutboxChannel); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// EnqueueHeal записывает пачку событий в собственной транзакции.
func (o *OutboxEventRepo) EnqueueHeal(ctx context.Context, events []usecase.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range events {
		model := o.conv.ToModel(&events[i])
		batch.Queue(insertEventQuery, model.EventID, model.EventType, model.ProductID, model.Payload, model.Status)
	}
	batch.Queue("NOTIFY " + OutboxChannel)

	err := pgx.BeginFunc(ctx, o.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%s: failed to enqueue heal events: %w", whereami.WhereAmI(), err)
	}

	return nil
}

// GetAndMarkAsProcessing забирает до limit ожидающих событий (и брошенных в processing)
// и помечает их processing. Конкурирующие воркеры не получают одни и те же строки.
func (o *OutboxEventRepo) GetAndMarkAsProcessing(ctx context.Context, limit int) (_ []usecase.OutboxEvent, err error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		UPDATE outbox_events
		SET status = $1, processing_started_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2
			   OR (status = $1 AND processing_started_at < NOW() - $4::interval)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id::text, event_type, product_id, payload, status, created_at, processed_at
	`

	rows, err := tx.Query(ctx, query, usecase.Processing, usecase.Pending, limit, o.stuckAfter)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query pending events: %w", whereami.WhereAmI(), err)
	}

	var models []*converter.OutboxEventModel
	for rows.Next() {
		var model converter.OutboxEventModel
		if err = rows.Scan(
			&model.ID,
			&model.EventID,
			&model.EventType,
			&model.ProductID,
			&model.Payload,
			&model.Status,
			&model.CreatedAt,
			&model.ProcessedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: failed to scan event: %w", whereami.WhereAmI(), err)
		}
		models = append(models, &model)
	}
	rows.Close()

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iterator error: %w", whereami.WhereAmI(), err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", whereami.WhereAmI(), err)
	}

	return o.conv.ToArrEntity(models), nil
}

// MarkAsProcessed помечает события обработанными. Уже обработанные пропускаются.
func (o *OutboxEventRepo) MarkAsProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = NOW()
		WHERE id = ANY($2) AND status = $3
	`

	if _, err := o.pool.Exec(ctx, query, usecase.Processed, ids, usecase.Processing); err != nil {
		return fmt.Errorf("%s: failed to mark events %v as processed: %w", whereami.WhereAmI(), ids, err)
	}

	return nil
}
