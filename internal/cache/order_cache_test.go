package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order"
)

type failingUpdates struct {
	*order.MemoryRepository
}

func (f failingUpdates) Update(context.Context, *model.Order) error {
	return errors.New("db down")
}

func TestOrderCache_LoadInitialData(t *testing.T) {
	ctx := context.Background()
	repo := order.NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &model.Order{ID: "a", Status: model.StatusWaiting, Pin: "111111"}))
	require.NoError(t, repo.Create(ctx, &model.Order{ID: "b", Status: model.StatusCompleted, Pin: "222222"}))

	c := cache.NewOrderCache(repo, nil)
	require.NoError(t, c.LoadInitialData(ctx))
	assert.Equal(t, 1, c.Len())

	o, err := c.GetByPin(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, "a", o.ID)

	// finished orders fall through to the repository
	o, err = c.GetByPin(ctx, "222222")
	require.NoError(t, err)
	assert.Equal(t, "b", o.ID)
}

func TestOrderCache_EvictsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := order.NewMemoryRepository()
	c := cache.NewOrderCache(repo, nil)

	o := &model.Order{ID: "a", Status: model.StatusReserved, Pin: "111111"}
	require.NoError(t, c.Create(ctx, o))
	assert.Equal(t, 1, c.Len())

	o.Status = model.StatusCanceled
	o.CancellationReason = "customer request"
	require.NoError(t, c.Update(ctx, o))
	assert.Zero(t, c.Len())

	stored, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, stored.Status)
	assert.Zero(t, c.Len(), "terminal order is not re-cached on read")
}

func TestOrderCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := cache.NewOrderCache(order.NewMemoryRepository(), nil)

	box := int64(4)
	require.NoError(t, c.Create(ctx, &model.Order{ID: "a", Status: model.StatusReserved, BoxID: &box}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	*got.BoxID = 99
	got.Status = model.StatusReady

	again, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), *again.BoxID)
	assert.Equal(t, model.StatusReserved, again.Status)
}

func TestOrderCache_FailedUpdateEvicts(t *testing.T) {
	ctx := context.Background()
	repo := order.NewMemoryRepository()
	c := cache.NewOrderCache(failingUpdates{repo}, nil)

	require.NoError(t, c.Create(ctx, &model.Order{ID: "a", Status: model.StatusReserved}))
	assert.Error(t, c.Update(ctx, &model.Order{ID: "a", Status: model.StatusWaiting}))
	assert.Zero(t, c.Len())

	o, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, o.Status)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrderCache_RefreshSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	repo := order.NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &model.Order{ID: "a", Status: model.StatusReserved, Pin: "111111"}))

	c := cache.NewOrderCache(repo, nil)
	require.NoError(t, c.LoadInitialData(ctx))

	// another process moves the order on
	require.NoError(t, repo.Update(ctx, &model.Order{ID: "a", Status: model.StatusCollected, Pin: "111111"}))

	cached, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, cached.Status)

	fresh, err := c.Refresh(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCollected, fresh.Status)

	byPin, err := c.GetByPin(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCollected, byPin.Status)

	require.NoError(t, repo.Update(ctx, &model.Order{ID: "a", Status: model.StatusCompleted, Pin: "111111"}))
	byPin, err = c.GetByPin(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, byPin.Status)
	assert.Zero(t, c.Len(), "finished order is evicted once seen")

	_, err = c.Refresh(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
