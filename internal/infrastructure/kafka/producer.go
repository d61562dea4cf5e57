package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// Заголовки сообщений о восстановлении товара.
const (
	headerContentType = "content-type"
	healContentType   = "application/x-protobuf; messageType=google.protobuf.Struct"
)

// Producer публикует события восстановления из outbox в топик heal.
type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    50,
		BatchTimeout: 200 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("heal producer: %d messages not delivered: %v", len(messages), err)
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// WriteRawMessage публикует событие. Ключ — id товара, поэтому события одного товара
// попадают в одну партицию и обрабатываются по порядку.
func (p *Producer) WriteRawMessage(ctx context.Context, req *usecase.WriteRawMessageReq) error {
	if err := p.writer.WriteMessages(ctx, healMessage(req)); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func healMessage(req *usecase.WriteRawMessageReq) kafka.Message {
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(req.ProductID, 10)),
		Value: req.Payload,
		Headers: []kafka.Header{
			{Key: headerContentType, Value: []byte(healContentType)},
		},
	}
}

// EnsureTopic создаёт топик через контроллер кластера, если его ещё нет.
// Перебирает брокеры, пока один не ответит.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var lastErr error
	for _, broker := range p.cfg.Brokers {
		if err := p.ensureTopicVia(ctx, broker); err != nil {
			lastErr = err
			p.logger.Warnf("ensure topic %s via %s: %v", p.cfg.Topic, broker, err)
			continue
		}
		return nil
	}

	return e.Wrap(whereami.WhereAmI(), fmt.Errorf("topic %s: %w", p.cfg.Topic, lastErr))
}

func (p *Producer) ensureTopicVia(ctx context.Context, broker string) error {
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}

	conn, err := dialer.DialContext(ctx, p.cfg.NetworkMode, broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	if partitions, err := conn.ReadPartitions(p.cfg.Topic); err == nil && len(partitions) > 0 {
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	ctrlConn, err := dialer.DialContext(ctx, p.cfg.NetworkMode, net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer ctrlConn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = ctrlConn.SetDeadline(deadline)
	}

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             p.cfg.Topic,
		NumPartitions:     p.cfg.Partitions,
		ReplicationFactor: p.cfg.ReplicationFactor,
	})
	if err != nil {
		return err
	}

	p.logger.Infof("kafka topic %s created: partitions=%d replication=%d", p.cfg.Topic, p.cfg.Partitions, p.cfg.ReplicationFactor)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
