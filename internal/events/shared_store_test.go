package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/events"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/locker"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order"
)

// Kiosk and consumer run as separate processes, each with its own cache over
// the same store.
func TestDispatcher_SharedStoreWithStaleCache(t *testing.T) {
	ctx := context.Background()
	store := order.NewMemoryRepository()
	boxes := locker.NewMemoryBoxes(model.Box{ID: 1, LockerID: 1, Status: model.BoxAvailable})

	kioskCache := cache.NewOrderCache(store, nil)
	kiosk := order.New(kioskCache, locker.NewAllocator(boxes, nil), nil, nil)

	o, err := kiosk.CreateOrder(ctx, model.CreateOrderRequest{LockerID: 1})
	require.NoError(t, err)
	_, err = kiosk.Reserve(ctx, o.ID, 0)
	require.NoError(t, err)

	consumerCache := cache.NewOrderCache(store, nil)
	require.NoError(t, consumerCache.LoadInitialData(ctx))
	consumer := order.New(consumerCache, locker.NewAllocator(boxes, nil), nil, nil)
	dispatcher := events.NewDispatcher(consumer, zap.NewNop())

	_, err = kiosk.ConfirmPlacement(ctx, o.ID)
	require.NoError(t, err)
	_, err = kiosk.Collect(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, dispatcher.Handle(ctx, []byte(`{"orderId":"`+o.ID+`","paymentMethod":"CASH"}`)))

	stored, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)

	fromKiosk, err := kiosk.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCollected, fromKiosk.Status, "kiosk's plain read may lag")

	ready, err := kiosk.MarkReady(ctx, o.ID)
	require.NoError(t, err, "kiosk mutations read the stored order")
	assert.Equal(t, model.StatusReady, ready.Status)
}
