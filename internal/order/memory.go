package order

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*model.Order)}
}

func (r *MemoryRepository) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; !ok {
		return apperr.ErrNotFound
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

// GetByPin prefers an active order. A PIN that only belongs to finished
// orders returns the most recent of them.
func (r *MemoryRepository) GetByPin(_ context.Context, pin string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *model.Order
	for _, o := range r.orders {
		if o.Pin != pin {
			continue
		}
		if !o.Status.IsTerminal() {
			return o.Clone(), nil
		}
		if found == nil || o.UpdatedAt.After(found.UpdatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, apperr.ErrNotFound
	}
	return found.Clone(), nil
}

func (r *MemoryRepository) ActivePinExists(_ context.Context, pin string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.Pin == pin && !o.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

// List returns the newest orders of a customer first. An empty customerID
// lists every order; limit <= 0 means no limit.
func (r *MemoryRepository) List(_ context.Context, customerID string, limit int) ([]*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Order
	for _, o := range r.orders {
		if customerID == "" || o.CustomerID == customerID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListActive(_ context.Context) ([]*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Order
	for _, o := range r.orders {
		if !o.Status.IsTerminal() {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]model.StatusChange
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]model.StatusChange)}
}

func (h *MemoryHistory) Record(_ context.Context, change model.StatusChange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[change.OrderID] = append(h.entries[change.OrderID], change)
	return nil
}

func (h *MemoryHistory) History(_ context.Context, orderID string) ([]model.StatusChange, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.StatusChange(nil), h.entries[orderID]...), nil
}
