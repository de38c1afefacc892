package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, o *model.Order) error
	GetByPin(ctx context.Context, pin string) (*model.Order, error)
	ActivePinExists(ctx context.Context, pin string) (bool, error)
	List(ctx context.Context, customerID string, limit int) ([]*model.Order, error)
	ListActive(ctx context.Context) ([]*model.Order, error)
}

// OrderCache keeps active orders in memory in front of a repository. Writes
// go through to the repository first; finished orders are evicted. Other
// processes may write the same repository, so a cached copy can be stale:
// callers that mutate an order load it with Refresh.
type OrderCache struct {
	mu     sync.RWMutex
	cache  map[string]*model.Order
	byPin  map[string]string
	repo   OrderRepository
	logger *zap.Logger
}

func NewOrderCache(repo OrderRepository, logger *zap.Logger) *OrderCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCache{
		cache:  make(map[string]*model.Order),
		byPin:  make(map[string]string),
		repo:   repo,
		logger: logger.With(zap.String("component", "order_cache")),
	}
}

func (c *OrderCache) LoadInitialData(ctx context.Context) error {
	c.logger.Info("loading active orders into cache")
	orders, err := c.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, o := range orders {
		c.set(o)
	}
	c.logger.Info("order cache loaded", zap.Int("orders", c.Len()))
	return nil
}

func (c *OrderCache) Create(ctx context.Context, o *model.Order) error {
	if err := c.repo.Create(ctx, o); err != nil {
		return err
	}
	c.set(o)
	return nil
}

func (c *OrderCache) Get(ctx context.Context, id string) (*model.Order, error) {
	c.mu.RLock()
	o, found := c.cache[id]
	c.mu.RUnlock()
	if found {
		return o.Clone(), nil
	}

	o, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(o)
	return o, nil
}

func (c *OrderCache) Update(ctx context.Context, o *model.Order) error {
	if err := c.repo.Update(ctx, o); err != nil {
		c.Delete(o.ID)
		return err
	}
	c.set(o)
	return nil
}

// Refresh reads the order from the repository and replaces the cached copy.
func (c *OrderCache) Refresh(ctx context.Context, id string) (*model.Order, error) {
	o, err := c.repo.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		c.Delete(id)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.set(o)
	return o, nil
}

// GetByPin uses the cache only to find the order id and always returns the
// stored order.
func (c *OrderCache) GetByPin(ctx context.Context, pin string) (*model.Order, error) {
	c.mu.RLock()
	id, found := c.byPin[pin]
	c.mu.RUnlock()

	if found {
		o, err := c.Refresh(ctx, id)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if err == nil && o.Pin == pin && !o.Status.IsTerminal() {
			return o, nil
		}
	}
	return c.repo.GetByPin(ctx, pin)
}

// ActivePinExists always asks the repository; it is the authority on
// uniqueness across processes.
func (c *OrderCache) ActivePinExists(ctx context.Context, pin string) (bool, error) {
	return c.repo.ActivePinExists(ctx, pin)
}

func (c *OrderCache) List(ctx context.Context, customerID string, limit int) ([]*model.Order, error) {
	return c.repo.List(ctx, customerID, limit)
}

func (c *OrderCache) ListActive(ctx context.Context) ([]*model.Order, error) {
	return c.repo.ListActive(ctx)
}

func (c *OrderCache) Delete(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(orderID)
}

func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *OrderCache) set(o *model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.Status.IsTerminal() {
		c.deleteLocked(o.ID)
		return
	}

	if prev, ok := c.cache[o.ID]; ok && prev.Pin != o.Pin {
		delete(c.byPin, prev.Pin)
	}
	c.cache[o.ID] = o.Clone()
	if o.Pin != "" {
		c.byPin[o.Pin] = o.ID
	}
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("cached order", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
}

func (c *OrderCache) deleteLocked(orderID string) {
	o, found := c.cache[orderID]
	if !found {
		return
	}
	delete(c.cache, orderID)
	if o.Pin != "" && c.byPin[o.Pin] == orderID {
		delete(c.byPin, o.Pin)
	}
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("evicted order", zap.String("order_id", orderID))
}
