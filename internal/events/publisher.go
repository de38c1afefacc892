package events

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

// StatusPublisher sends every order status change to a topic, keyed by order
// id so a partition sees the changes of one order in order.
type StatusPublisher struct {
	producer Producer
	topic    string
}

func NewStatusPublisher(producer Producer, topic string) *StatusPublisher {
	return &StatusPublisher{producer: producer, topic: topic}
}

func (p *StatusPublisher) OrderStatusChanged(ctx context.Context, change model.StatusChange) error {
	value, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode status change: %w", err)
	}
	if err := p.producer.SendMessage(ctx, p.topic, []byte(change.OrderID), value); err != nil {
		return fmt.Errorf("failed to publish status change for order %s: %w", change.OrderID, err)
	}
	return nil
}
