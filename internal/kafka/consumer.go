package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	ReadBackoff  time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		MaxAttempts:  3,
		RetryBackoff: time.Second,
		ReadBackoff:  5 * time.Second,
	}
}

// Consumer commits a message once the handler accepted it or gave up after
// MaxAttempts, so one poisoned message cannot stall its partition.
type Consumer struct {
	reader  MessageReader
	handler Handler
	config  ConsumerConfig
	logger  *zap.Logger
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
}

func NewConsumer(reader MessageReader, handler Handler, config ConsumerConfig, logger *zap.Logger) *Consumer {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Consumer{reader: reader, handler: handler, config: config, logger: logger}
}

// Run blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer stopped")
				return nil
			}
			c.logger.Error("failed to read kafka message", zap.Error(err))
			if !sleep(ctx, c.config.ReadBackoff) {
				return nil
			}
			continue
		}

		l := c.logger.With(
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		if err := c.handle(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			l.Error("giving up on kafka message", zap.Error(err), zap.ByteString("key", m.Key))
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.Error("failed to commit kafka message", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var err error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if err = c.handler.Handle(ctx, m.Value); err == nil {
			return nil
		}
		c.logger.Warn("kafka handler failed",
			zap.Int("attempt", attempt),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		if attempt < c.config.MaxAttempts && !sleep(ctx, c.config.RetryBackoff) {
			return ctx.Err()
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
