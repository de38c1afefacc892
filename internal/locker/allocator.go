//go:generate mockgen -source ./allocator.go -destination=./mocks/allocator.go -package=mock_locker

// Package locker allocates boxes to orders.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/keylock"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

// ErrConflict is returned by a BoxRepository when the box is no longer in the
// expected state.
var ErrConflict = errors.New("box state changed concurrently")

// Binding is the part of a box a compare-and-swap checks and sets. An empty
// OrderID means the box is bound to no order.
type Binding struct {
	Status  model.BoxStatus
	OrderID string
}

func bindingOf(box model.Box) Binding {
	return Binding{Status: box.Status, OrderID: box.OrderID}
}

type BoxRepository interface {
	ListByLocker(ctx context.Context, lockerID int64) ([]model.Box, error)
	Get(ctx context.Context, boxID int64) (model.Box, error)
	// CompareAndSwap sets the box to `to` only while both its status and its
	// order binding still equal `from`. Otherwise it returns ErrConflict.
	CompareAndSwap(ctx context.Context, boxID int64, from, to Binding) error
}

type Allocator struct {
	repo   BoxRepository
	locks  *keylock.Map[int64]
	logger *zap.Logger
}

func NewAllocator(repo BoxRepository, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		repo:   repo,
		locks:  keylock.New[int64](),
		logger: logger.With(zap.String("component", "allocator")),
	}
}

// Reserve binds the lowest-numbered available box of the locker to orderID.
// The store has the final word: a lost compare-and-swap is reported as no
// capacity rather than retried on another box.
func (a *Allocator) Reserve(ctx context.Context, lockerID int64, orderID string) (model.Box, error) {
	unlock := a.locks.Lock(lockerID)
	defer unlock()

	l := a.logger.With(zap.Int64("locker_id", lockerID), zap.String("order_id", orderID))

	boxes, err := a.repo.ListByLocker(ctx, lockerID)
	if err != nil {
		return model.Box{}, fmt.Errorf("failed to list boxes: %w", err)
	}

	candidate, ok := lowestAvailable(boxes)
	if !ok {
		metrics.AllocationFailuresTotal.Inc()
		l.Info("no available box")
		return model.Box{}, &apperr.NoCapacityError{LockerID: lockerID}
	}

	err = a.repo.CompareAndSwap(ctx, candidate.ID, bindingOf(candidate), Binding{Status: model.BoxReserved, OrderID: orderID})
	if errors.Is(err, ErrConflict) {
		metrics.AllocationFailuresTotal.Inc()
		l.Warn("box taken concurrently", zap.Int64("box_id", candidate.ID))
		return model.Box{}, &apperr.NoCapacityError{LockerID: lockerID, Reason: fmt.Sprintf("box %d already taken", candidate.ID)}
	}
	if err != nil {
		return model.Box{}, fmt.Errorf("failed to reserve box %d: %w", candidate.ID, err)
	}

	candidate.Status = model.BoxReserved
	candidate.OrderID = orderID
	l.Debug("box reserved", zap.Int64("box_id", candidate.ID))
	return candidate, nil
}

// Occupy marks a reserved box as holding items for the order it is bound to.
func (a *Allocator) Occupy(ctx context.Context, boxID int64) error {
	return a.move(ctx, boxID, func(box model.Box) (Binding, bool, error) {
		switch box.Status {
		case model.BoxOccupied:
			return Binding{}, false, nil
		case model.BoxReserved:
			return Binding{Status: model.BoxOccupied, OrderID: box.OrderID}, true, nil
		default:
			return Binding{}, false, fmt.Errorf("box %d is %s, not reserved", box.ID, box.Status)
		}
	})
}

// Release unbinds the box from orderID and returns it to the available pool.
// A box bound to another order, or to none, is left alone. An out-of-service
// box only loses its binding.
func (a *Allocator) Release(ctx context.Context, boxID int64, orderID string) error {
	return a.move(ctx, boxID, func(box model.Box) (Binding, bool, error) {
		if box.OrderID != orderID {
			if box.OrderID != "" {
				a.logger.Warn("box is bound to another order, not releasing",
					zap.Int64("box_id", box.ID), zap.String("order_id", orderID), zap.String("bound_to", box.OrderID))
			}
			return Binding{}, false, nil
		}
		switch box.Status {
		case model.BoxOutOfService:
			return Binding{Status: model.BoxOutOfService}, true, nil
		case model.BoxAvailable:
			return Binding{Status: model.BoxAvailable}, box.OrderID != "", nil
		default:
			return Binding{Status: model.BoxAvailable}, true, nil
		}
	})
}

type decideFunc func(box model.Box) (to Binding, change bool, err error)

func (a *Allocator) move(ctx context.Context, boxID int64, decide decideFunc) error {
	box, err := a.repo.Get(ctx, boxID)
	if err != nil {
		return fmt.Errorf("failed to get box %d: %w", boxID, err)
	}

	unlock := a.locks.Lock(box.LockerID)
	defer unlock()

	// re-read under the locker lock
	box, err = a.repo.Get(ctx, boxID)
	if err != nil {
		return fmt.Errorf("failed to get box %d: %w", boxID, err)
	}

	to, change, err := decide(box)
	if err != nil || !change {
		return err
	}

	if err := a.repo.CompareAndSwap(ctx, boxID, bindingOf(box), to); err != nil {
		return fmt.Errorf("failed to move box %d to %s: %w", boxID, to.Status, err)
	}
	return nil
}

func lowestAvailable(boxes []model.Box) (model.Box, bool) {
	available := make([]model.Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Status == model.BoxAvailable {
			available = append(available, b)
		}
	}
	if len(available) == 0 {
		return model.Box{}, false
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })
	return available[0], true
}
