package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/jitter"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	outboxBatchSize    = 10
	outboxPollInterval = 30 * time.Second
	listenWaitTimeout  = 30 * time.Second
)

var listenBackoff = jitter.Exponential(2*time.Second, time.Minute)

// OutboxWorker переносит события outbox в Kafka.
//
// Публикует только горутина run: слушатель LISTEN лишь будит её через wake,
// поэтому пачки не разбираются параллельно. Кроме NOTIFY, run дочищает остатки
// при старте и раз в outboxPollInterval.
type OutboxWorker struct {
	repo     usecase.OutboxRepository
	producer usecase.MessageProducer
	logger   logger.Logger

	dsn     string
	channel string

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dsn string,
	channel string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:     repo,
		producer: producer,
		logger:   logger.With("component", "outbox"),
		dsn:      dsn,
		channel:  channel,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.listen(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

// notify будит run. Повторные сигналы до пробуждения схлопываются в один.
func (w *OutboxWorker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("draining pending outbox events on startup")
	w.drain(ctx)

	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.wake:
			w.drain(ctx)
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("outbox batch failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

// listen держит отдельное соединение с LISTEN и переподключается с нарастающей паузой.
// Пока соединения нет, события доставляются опросом по таймеру.
func (w *OutboxWorker) listen(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		err := w.listenOnce(ctx)
		if ctx.Err() != nil || w.stopped() {
			return
		}

		pause := listenBackoff.Delay(attempt)
		w.logger.Warnf("outbox listener on %q lost: %v, reconnecting in %v", w.channel, err, pause)
		if err := w.sleep(ctx, pause); err != nil {
			return
		}
	}
}

func (w *OutboxWorker) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, w.dsn)
	if err != nil {
		return e.Wrap("outbox listener connect", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{w.channel}.Sanitize()); err != nil {
		return e.Wrap("outbox listener subscribe", err)
	}
	w.logger.Infof("subscribed to %q", w.channel)

	// события, записанные пока соединения не было
	w.notify()

	for !w.stopped() {
		waitCtx, cancel := context.WithTimeout(ctx, listenWaitTimeout)
		n, err := conn.WaitForNotification(waitCtx)
		cancel()

		switch {
		case err == nil:
			if n.Channel == w.channel {
				w.notify()
			}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// тишина в канале, проверяем stop и ждём дальше
		default:
			return fmt.Errorf("wait for notification: %w", err)
		}
	}
	return nil
}

func (w *OutboxWorker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// sleep прерывается и по ctx, и по Stop.
func (w *OutboxWorker) sleep(ctx context.Context, d time.Duration) error {
	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-sleepCtx.Done():
		}
	}()
	return jitter.Sleep(sleepCtx, d)
}

// processBatch публикует пачку событий. Неотправленные остаются в processing
// и возвращаются в работу репозиторием после таймаута.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, outboxBatchSize)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	sent := make([]int64, 0, len(events))
	for i := range events {
		if err := w.publish(ctx, &events[i]); err != nil {
			w.logger.Warnf("publish outbox event %s: %v", events[i].EventID, err)
			continue
		}
		sent = append(sent, events[i].ID)
	}

	if len(sent) > 0 {
		if err := w.repo.MarkAsProcessed(ctx, sent); err != nil {
			w.logger.Warnf("mark %d outbox events processed: %v", len(sent), err)
		}
	}

	// если ничего не ушло, брокер недоступен: ждём следующего пробуждения
	return len(sent) > 0, nil
}

func (w *OutboxWorker) publish(ctx context.Context, event *usecase.OutboxEvent) error {
	err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.ProductID, event.Payload))
	switch {
	case err == nil:
		return nil
	case infrastructure.IsTransient(err):
		return e.Wrap("kafka temporarily unavailable", err)
	default:
		return e.Wrap("kafka rejected message", err)
	}
}
