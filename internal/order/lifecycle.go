//go:generate mockgen -source ./lifecycle.go -destination=./mocks/lifecycle.go -package=mock_order

// Package order coordinates the order state machine with box allocation, PIN
// issuance and payment checkout.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/keylock"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

// Repository returns copies; mutating a returned order has no effect until
// Update is called. Get and GetByPin return apperr.ErrNotFound for absence.
type Repository interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, o *model.Order) error
	GetByPin(ctx context.Context, pin string) (*model.Order, error)
	ActivePinExists(ctx context.Context, pin string) (bool, error)
	List(ctx context.Context, customerID string, limit int) ([]*model.Order, error)
}

type Allocator interface {
	Reserve(ctx context.Context, lockerID int64, orderID string) (model.Box, error)
	Occupy(ctx context.Context, boxID int64) error
	Release(ctx context.Context, boxID int64, orderID string) error
}

// Refresher is implemented by repositories that serve reads from a cache.
// Mutations load the order through it so that a copy another process has
// since changed never decides a transition.
type Refresher interface {
	Refresh(ctx context.Context, id string) (*model.Order, error)
}

type PaymentGateway interface {
	Checkout(ctx context.Context, orderID string, method model.PaymentMethod) (string, error)
}

type Notifier interface {
	OrderStatusChanged(ctx context.Context, change model.StatusChange) error
}

type HistoryRecorder interface {
	Record(ctx context.Context, change model.StatusChange) error
	History(ctx context.Context, orderID string) ([]model.StatusChange, error)
}

type Option func(*Lifecycle)

func WithNotifier(n Notifier) Option {
	return func(l *Lifecycle) { l.notifier = n }
}

func WithHistory(h HistoryRecorder) Option {
	return func(l *Lifecycle) { l.history = h }
}

type Lifecycle struct {
	repo     Repository
	alloc    Allocator
	payments PaymentGateway
	notifier Notifier
	history  HistoryRecorder
	logger   *zap.Logger

	locks *keylock.Map[string]
	pinMu sync.Mutex

	timeNow func() time.Time
	newID   func() string
	genPin  func() (string, error)
}

func New(repo Repository, alloc Allocator, payments PaymentGateway, logger *zap.Logger, opts ...Option) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lifecycle{
		repo:     repo,
		alloc:    alloc,
		payments: payments,
		logger:   logger.With(zap.String("component", "order_lifecycle")),
		locks:    keylock.New[string](),
		timeNow:  time.Now,
		newID:    uuid.NewString,
		genPin:   randomPin,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	if req.LockerID <= 0 {
		return nil, &apperr.PreconditionError{Op: "create order", Reason: "locker id is required"}
	}

	now := l.timeNow().UTC()
	o := &model.Order{
		ID:         l.newID(),
		CustomerID: req.CustomerID,
		Type:       req.Type,
		LockerID:   req.LockerID,
		Status:     model.StatusInitialized,
		Total:      req.Total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if o.Type == "" {
		o.Type = model.OrderTypeStandardDropoff
	}

	if err := l.repo.Create(ctx, o); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create_order").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	l.publish(ctx, model.StatusChange{OrderID: o.ID, To: o.Status, ChangedAt: now})
	l.logger.Info("order created", zap.String("order_id", o.ID), zap.Int64("locker_id", o.LockerID))
	return o.Clone(), nil
}

// Reserve binds a box of the locker to the order and issues its PIN. A zero
// lockerID uses the locker the order was created for.
func (l *Lifecycle) Reserve(ctx context.Context, orderID string, lockerID int64) (*model.Order, error) {
	unlock := l.locks.Lock(orderID)
	defer unlock()

	o, err := l.getFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(o, model.StatusReserved); err != nil {
		return nil, err
	}
	if lockerID == 0 {
		lockerID = o.LockerID
	}
	if lockerID == 0 {
		return nil, &apperr.PreconditionError{Op: "reserve", Reason: "no locker selected"}
	}

	box, err := l.alloc.Reserve(ctx, lockerID, o.ID)
	if err != nil {
		return nil, err
	}

	l.pinMu.Lock()
	defer l.pinMu.Unlock()

	pin, err := l.issuePin(ctx)
	if err != nil {
		l.releaseQuietly(ctx, box.ID, o.ID)
		return nil, err
	}

	from := o.Status
	o.LockerID = lockerID
	o.BoxID = &box.ID
	o.Pin = pin

	updated, err := l.apply(ctx, o, from, model.StatusReserved, "")
	if err != nil {
		l.releaseQuietly(ctx, box.ID, o.ID)
		return nil, err
	}
	return updated, nil
}

// ConfirmPlacement records that items were put into the reserved box.
func (l *Lifecycle) ConfirmPlacement(ctx context.Context, orderID string) (*model.Order, error) {
	return l.transition(ctx, orderID, model.StatusWaiting, func(ctx context.Context, o *model.Order) error {
		if o.BoxID == nil {
			return &apperr.PreconditionError{Op: "confirm placement", Reason: "order has no box"}
		}
		if err := l.alloc.Occupy(ctx, *o.BoxID); err != nil {
			return fmt.Errorf("failed to occupy box: %w", err)
		}
		return nil
	})
}

func (l *Lifecycle) Collect(ctx context.Context, orderID string) (*model.Order, error) {
	return l.transition(ctx, orderID, model.StatusCollected, nil)
}

func (l *Lifecycle) MarkReady(ctx context.Context, orderID string) (*model.Order, error) {
	return l.transition(ctx, orderID, model.StatusReady, nil)
}

func (l *Lifecycle) Return(ctx context.Context, orderID string) (*model.Order, error) {
	return l.transition(ctx, orderID, model.StatusReturned, l.freeBox)
}

func (l *Lifecycle) Complete(ctx context.Context, orderID string) (*model.Order, error) {
	return l.transition(ctx, orderID, model.StatusCompleted, l.freeBox)
}

// Checkout asks the payment gateway for a payment handle. The status does not
// change here; ConfirmPayment moves the order on once payment arrives. An
// order already in PROCESSING is reported as paid without contacting the
// gateway.
func (l *Lifecycle) Checkout(ctx context.Context, orderID string, method model.PaymentMethod) (model.CheckoutResult, error) {
	if !method.Valid() {
		return model.CheckoutResult{}, &apperr.PreconditionError{Op: "checkout", Reason: fmt.Sprintf("unknown payment method %q", method)}
	}

	unlock := l.locks.Lock(orderID)
	defer unlock()

	o, err := l.getFresh(ctx, orderID)
	if err != nil {
		return model.CheckoutResult{}, err
	}
	if o.Status == model.StatusProcessing {
		return model.CheckoutResult{AlreadyPaid: true}, nil
	}
	if err := checkTransition(o, model.StatusProcessing); err != nil {
		return model.CheckoutResult{}, err
	}

	paymentURL, err := l.payments.Checkout(ctx, o.ID, method)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("checkout").Inc()
		return model.CheckoutResult{}, fmt.Errorf("failed to start payment: %w", err)
	}

	o.PaymentMethod = method
	o.UpdatedAt = l.timeNow().UTC()
	if err := l.repo.Update(ctx, o); err != nil {
		return model.CheckoutResult{}, fmt.Errorf("failed to save payment method: %w", err)
	}

	l.logger.Info("checkout started", zap.String("order_id", o.ID), zap.String("method", string(method)))
	return model.CheckoutResult{PaymentURL: paymentURL}, nil
}

// ConfirmPayment applies an external payment confirmation. Confirmations for
// an order that is already past COLLECTED are ignored.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, orderID string) (*model.Order, error) {
	unlock := l.locks.Lock(orderID)
	defer unlock()

	o, err := l.getFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case model.StatusProcessing, model.StatusReady, model.StatusReturned, model.StatusCompleted:
		l.logger.Debug("duplicate payment confirmation", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
		return o, nil
	}
	if err := checkTransition(o, model.StatusProcessing); err != nil {
		return nil, err
	}
	return l.apply(ctx, o, o.Status, model.StatusProcessing, "")
}

// Cancel releases the bound box and finishes the order. The reason is kept on
// the order.
func (l *Lifecycle) Cancel(ctx context.Context, orderID, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &apperr.PreconditionError{Op: "cancel", Reason: "a cancellation reason is required"}
	}

	return l.transition(ctx, orderID, model.StatusCanceled, func(ctx context.Context, o *model.Order) error {
		if err := l.freeBox(ctx, o); err != nil {
			return err
		}
		o.CancellationReason = reason
		return nil
	})
}

// LookupByPin returns what a PIN holder may see. Unknown, malformed and
// finished PINs all yield apperr.ErrNotFound.
func (l *Lifecycle) LookupByPin(ctx context.Context, pin string) (model.PickupView, error) {
	if !ValidPin(pin) {
		return model.PickupView{}, apperr.ErrNotFound
	}

	o, err := l.repo.GetByPin(ctx, pin)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.PickupView{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.PickupView{}, fmt.Errorf("failed to look up pin: %w", err)
	}
	if o.Status.IsTerminal() {
		return model.PickupView{}, apperr.ErrNotFound
	}

	return model.PickupView{
		OrderID:  o.ID,
		Status:   o.Status,
		LockerID: o.LockerID,
		BoxID:    o.Clone().BoxID,
	}, nil
}

func (l *Lifecycle) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return l.get(ctx, orderID)
}

func (l *Lifecycle) List(ctx context.Context, customerID string, limit int) ([]*model.Order, error) {
	orders, err := l.repo.List(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (l *Lifecycle) History(ctx context.Context, orderID string) ([]model.StatusChange, error) {
	if _, err := l.get(ctx, orderID); err != nil {
		return nil, err
	}
	if l.history == nil {
		return nil, nil
	}
	changes, err := l.history.History(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	return changes, nil
}

type mutateFunc func(ctx context.Context, o *model.Order) error

func (l *Lifecycle) transition(ctx context.Context, orderID string, to model.OrderStatus, mutate mutateFunc) (*model.Order, error) {
	unlock := l.locks.Lock(orderID)
	defer unlock()

	o, err := l.getFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(o, to); err != nil {
		return nil, err
	}

	from := o.Status
	if mutate != nil {
		if err := mutate(ctx, o); err != nil {
			return nil, err
		}
	}
	return l.apply(ctx, o, from, to, o.CancellationReason)
}

func (l *Lifecycle) apply(ctx context.Context, o *model.Order, from, to model.OrderStatus, reason string) (*model.Order, error) {
	now := l.timeNow().UTC()
	o.Status = to
	o.UpdatedAt = now

	if err := l.repo.Update(ctx, o); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("update_order").Inc()
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()

	l.publish(ctx, model.StatusChange{OrderID: o.ID, From: from, To: to, Reason: reason, ChangedAt: now})
	l.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return o.Clone(), nil
}

// publish is best-effort: the transition is already stored.
func (l *Lifecycle) publish(ctx context.Context, change model.StatusChange) {
	if l.history != nil {
		if err := l.history.Record(ctx, change); err != nil {
			l.logger.Warn("failed to record status change", zap.String("order_id", change.OrderID), zap.Error(err))
		}
	}
	if l.notifier != nil {
		if err := l.notifier.OrderStatusChanged(ctx, change); err != nil {
			l.logger.Warn("failed to publish status change", zap.String("order_id", change.OrderID), zap.Error(err))
		}
	}
}

func (l *Lifecycle) freeBox(ctx context.Context, o *model.Order) error {
	if o.BoxID == nil {
		return nil
	}
	if err := l.alloc.Release(ctx, *o.BoxID, o.ID); err != nil {
		return fmt.Errorf("failed to release box: %w", err)
	}
	o.BoxID = nil
	return nil
}

func (l *Lifecycle) releaseQuietly(ctx context.Context, boxID int64, orderID string) {
	if err := l.alloc.Release(context.WithoutCancel(ctx), boxID, orderID); err != nil {
		l.logger.Error("failed to release box after aborted reservation", zap.Int64("box_id", boxID), zap.Error(err))
	}
}

func (l *Lifecycle) get(ctx context.Context, orderID string) (*model.Order, error) {
	return l.load(ctx, orderID, l.repo.Get)
}

// getFresh is used under the order lock before a mutation.
func (l *Lifecycle) getFresh(ctx context.Context, orderID string) (*model.Order, error) {
	if r, ok := l.repo.(Refresher); ok {
		return l.load(ctx, orderID, r.Refresh)
	}
	return l.get(ctx, orderID)
}

func (l *Lifecycle) load(ctx context.Context, orderID string, read func(context.Context, string) (*model.Order, error)) (*model.Order, error) {
	o, err := read(ctx, orderID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}
