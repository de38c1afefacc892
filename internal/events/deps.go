//go:generate mockgen -source ./deps.go -destination=./mocks/deps.go -package=mock_events

package events

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string) (*model.Order, error)
}

type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
}
