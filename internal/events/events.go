// Package events carries order events between the lifecycle and the message
// brokers: payment confirmations in, status changes out.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

var ErrMalformed = errors.New("malformed event")

type PaymentConfirmed struct {
	OrderID       string              `json:"orderId"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod,omitempty"`
	TransactionID string              `json:"transactionId,omitempty"`
	PaidAt        time.Time           `json:"paidAt"`
}

// DecodePaymentConfirmed accepts the order id as a JSON string or number.
func DecodePaymentConfirmed(body []byte) (PaymentConfirmed, error) {
	var raw struct {
		OrderID       json.RawMessage     `json:"orderId"`
		PaymentMethod model.PaymentMethod `json:"paymentMethod"`
		TransactionID string              `json:"transactionId"`
		PaidAt        time.Time           `json:"paidAt"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return PaymentConfirmed{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	id := strings.TrimSpace(string(raw.OrderID))
	var s string
	if err := json.Unmarshal(raw.OrderID, &s); err == nil {
		id = strings.TrimSpace(s)
	}
	if id == "" || id == "null" {
		return PaymentConfirmed{}, fmt.Errorf("%w: orderId is required", ErrMalformed)
	}
	if raw.PaymentMethod != "" && !raw.PaymentMethod.Valid() {
		return PaymentConfirmed{}, fmt.Errorf("%w: unknown payment method %q", ErrMalformed, raw.PaymentMethod)
	}

	return PaymentConfirmed{
		OrderID:       id,
		PaymentMethod: raw.PaymentMethod,
		TransactionID: raw.TransactionID,
		PaidAt:        raw.PaidAt,
	}, nil
}

// Dispatcher applies payment confirmations to orders. Handle returns an error
// only when redelivering the message could succeed; events that can never
// apply are logged and acknowledged.
type Dispatcher struct {
	orders PaymentConfirmer
	logger *zap.Logger
}

func NewDispatcher(orders PaymentConfirmer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{orders: orders, logger: logger}
}

func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	evt, err := DecodePaymentConfirmed(body)
	if err != nil {
		metrics.EventsConsumedTotal.WithLabelValues("malformed").Inc()
		d.logger.Warn("dropping payment event", zap.Error(err), zap.ByteString("body", body))
		return nil
	}

	l := d.logger.With(zap.String("order_id", evt.OrderID), zap.String("transaction_id", evt.TransactionID))

	o, err := d.orders.ConfirmPayment(ctx, evt.OrderID)
	var (
		terminal   *apperr.TerminalStateError
		transition *apperr.InvalidTransitionError
	)
	switch {
	case err == nil:
		metrics.EventsConsumedTotal.WithLabelValues("applied").Inc()
		l.Info("payment confirmed", zap.String("status", string(o.Status)))
		return nil
	case errors.Is(err, apperr.ErrNotFound), errors.As(err, &terminal):
		metrics.EventsConsumedTotal.WithLabelValues("ignored").Inc()
		l.Warn("payment event does not apply", zap.Error(err))
		return nil
	case errors.As(err, &transition):
		// payment arrived before the order was collected; it applies once
		// the order catches up
		metrics.EventsConsumedTotal.WithLabelValues("deferred").Inc()
		l.Info("payment event arrived early", zap.String("status", transition.From))
		return fmt.Errorf("order %s cannot take payment yet: %w", evt.OrderID, err)
	default:
		metrics.EventsConsumedTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to confirm payment for order %s: %w", evt.OrderID, err)
	}
}
