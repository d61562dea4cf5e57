package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/jitter"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const healMaxAttempts = 3

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HealConsumer читает запросы восстановления и выполняет их по одному.
// Сообщение коммитится после обработки, в том числе неудачной: восстановление
// идемпотентно, и товар всё равно будет найден следующим backfill.
type HealConsumer struct {
	reader messageReader
	heal   usecase.HealUC
	logger logger.Logger
	wg     sync.WaitGroup
}

func NewHealConsumer(cfg *cfg.KafkaCfg, heal usecase.HealUC, logger logger.Logger) *HealConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newHealConsumer(reader, heal, logger)
}

func newHealConsumer(reader messageReader, heal usecase.HealUC, logger logger.Logger) *HealConsumer {
	return &HealConsumer{
		reader: reader,
		heal:   heal,
		logger: logger,
	}
}

func (c *HealConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Close останавливает чтение. ctx, переданный в Start, должен быть уже отменён.
func (c *HealConsumer) Close() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *HealConsumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			// закрытый reader отдаёт io.EOF
			if errors.Is(err, io.EOF) {
				return
			}
			c.logger.Warnf("fetch heal message: %v", err)
			if err := jitter.Sleep(ctx, jitter.Duration(time.Second, jitter.DefaultFactor)); err != nil {
				return
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warnf("commit heal message offset %d: %v", msg.Offset, err)
		}
	}
}

// handle декодирует запрос и вызывает восстановление, повторяя временные сбои.
func (c *HealConsumer) handle(ctx context.Context, msg kafka.Message) {
	req, err := usecase.DecodeHealRequest(msg.Value)
	if err != nil {
		c.logger.Errorf(err, "drop malformed heal message at offset %d", msg.Offset)
		return
	}

	for attempt := 0; attempt < healMaxAttempts; attempt++ {
		report, err := c.heal.HealProduct(ctx, req.ProductID)
		if err == nil {
			if report.Changed() {
				c.logger.Infof("healed product %d (%s)", req.ProductID, req.Reason)
			}
			return
		}

		if errors.Is(err, e.ErrProductNotFound) {
			c.logger.Debugf("heal skipped, product %d is gone", req.ProductID)
			return
		}
		if !infrastructure.IsTransient(err) && !errors.Is(err, e.ErrStorage) {
			c.logger.Errorf(err, "heal product %d failed", req.ProductID)
			return
		}

		sleep := jitter.Exponential(500*time.Millisecond, 5*time.Second).Delay(attempt)
		c.logger.Warnf("heal product %d failed, retrying in %v: %v", req.ProductID, sleep, err)
		if err := jitter.Sleep(ctx, sleep); err != nil {
			return
		}
	}

	c.logger.Warnf("heal product %d gave up after %d attempts", req.ProductID, healMaxAttempts)
}
