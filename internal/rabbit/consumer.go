// Package rabbit feeds payment confirmations from a RabbitMQ queue to a
// handler.
package rabbit

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// Channel is the part of *amqp091.Channel the consumer uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

type Consumer struct {
	ch       Channel
	queue    string
	exchange string
	handler  Handler
	logger   *zap.Logger
}

// NewConsumer binds queue to exchange when exchange is not empty. The
// exchange itself is owned by the publisher and is expected to exist.
func NewConsumer(ch Channel, queue, exchange string, handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, exchange: exchange, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled or the delivery channel closes. A
// message whose handler fails is requeued once and dropped when it fails
// again on redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	q, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}
	if c.exchange != "" {
		if err := c.ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", q.Name, c.exchange, err)
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", q.Name, err)
	}
	c.logger.Info("subscribed to rabbit queue", zap.String("queue", q.Name), zap.String("exchange", c.exchange))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("rabbit consumer stopped")
			return nil
		case m, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbit delivery channel closed")
			}
			c.deliver(ctx, m)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, m amqp091.Delivery) {
	l := c.logger.With(zap.Uint64("delivery_tag", m.DeliveryTag), zap.String("message_id", m.MessageId))

	err := c.handler.Handle(ctx, m.Body)
	if err == nil {
		if err := m.Ack(false); err != nil {
			l.Error("failed to ack message", zap.Error(err))
		}
		return
	}

	requeue := !m.Redelivered
	if requeue {
		l.Warn("handler failed, requeueing message", zap.Error(err))
	} else {
		l.Error("handler failed on redelivery, dropping message", zap.Error(err))
	}
	if err := m.Nack(false, requeue); err != nil {
		l.Error("failed to nack message", zap.Error(err))
	}
}
