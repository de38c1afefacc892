package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/locker"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	mock_order "gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order/mocks"
)

var fixedTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *MemoryRepository
	boxes    *locker.MemoryBoxes
	history  *MemoryHistory
	payments *mock_order.MockPaymentGateway
	lc       *Lifecycle
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		repo: NewMemoryRepository(),
		boxes: locker.NewMemoryBoxes(
			model.Box{ID: 1, LockerID: 1, Number: "01", Status: model.BoxAvailable},
			model.Box{ID: 2, LockerID: 1, Number: "02", Status: model.BoxAvailable},
		),
		history:  NewMemoryHistory(),
		payments: mock_order.NewMockPaymentGateway(ctrl),
	}
	opts = append([]Option{WithHistory(f.history)}, opts...)
	f.lc = New(f.repo, locker.NewAllocator(f.boxes, nil), f.payments, nil, opts...)

	seq := 0
	f.lc.timeNow = func() time.Time { return fixedTime }
	f.lc.newID = func() string {
		seq++
		return fmt.Sprintf("order-%d", seq)
	}
	return f
}

func (f *fixture) create(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.lc.CreateOrder(context.Background(), model.CreateOrderRequest{CustomerID: "c-1", LockerID: 1, Total: 50000})
	require.NoError(t, err)
	return o
}

// advance walks a new order forward until it reaches status.
func (f *fixture) advance(t *testing.T, status model.OrderStatus) *model.Order {
	t.Helper()
	ctx := context.Background()

	o := f.create(t)
	steps := []struct {
		to model.OrderStatus
		do func() (*model.Order, error)
	}{
		{model.StatusReserved, func() (*model.Order, error) { return f.lc.Reserve(ctx, o.ID, 0) }},
		{model.StatusWaiting, func() (*model.Order, error) { return f.lc.ConfirmPlacement(ctx, o.ID) }},
		{model.StatusCollected, func() (*model.Order, error) { return f.lc.Collect(ctx, o.ID) }},
		{model.StatusProcessing, func() (*model.Order, error) { return f.lc.ConfirmPayment(ctx, o.ID) }},
		{model.StatusReady, func() (*model.Order, error) { return f.lc.MarkReady(ctx, o.ID) }},
	}
	for _, s := range steps {
		if o.Status == status {
			break
		}
		var err error
		o, err = s.do()
		require.NoError(t, err, "advancing to %s", s.to)
	}
	require.Equal(t, status, o.Status)
	return o
}

func (f *fixture) box(t *testing.T, id int64) model.Box {
	t.Helper()
	b, err := f.boxes.Get(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestLifecycle_CreateAndReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.create(t)
	assert.Equal(t, model.StatusInitialized, o.Status)
	assert.Nil(t, o.BoxID)
	assert.Empty(t, o.Pin)
	assert.Equal(t, fixedTime, o.CreatedAt)

	reserved, err := f.lc.Reserve(ctx, o.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, reserved.Status)
	require.NotNil(t, reserved.BoxID)
	assert.Equal(t, int64(1), *reserved.BoxID)
	assert.True(t, ValidPin(reserved.Pin), "pin %q", reserved.Pin)

	b := f.box(t, 1)
	assert.Equal(t, model.BoxReserved, b.Status)
	assert.Equal(t, o.ID, b.OrderID)
}

func TestLifecycle_CreateOrderNeedsLocker(t *testing.T) {
	f := newFixture(t)

	_, err := f.lc.CreateOrder(context.Background(), model.CreateOrderRequest{CustomerID: "c-1"})
	var pe *apperr.PreconditionError
	assert.True(t, errors.As(err, &pe))
}

func TestLifecycle_CancelReleasesBox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.advance(t, model.StatusReserved)
	pin := o.Pin
	boxID := *o.BoxID

	canceled, err := f.lc.Cancel(ctx, o.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)
	assert.Equal(t, "customer request", canceled.CancellationReason)
	assert.Nil(t, canceled.BoxID)
	assert.Equal(t, pin, canceled.Pin, "pin never changes")

	b := f.box(t, boxID)
	assert.Equal(t, model.BoxAvailable, b.Status)
	assert.Empty(t, b.OrderID)
}

func TestLifecycle_CancelNeedsReason(t *testing.T) {
	f := newFixture(t)
	o := f.create(t)

	for _, reason := range []string{"", "   "} {
		_, err := f.lc.Cancel(context.Background(), o.ID, reason)
		var pe *apperr.PreconditionError
		assert.True(t, errors.As(err, &pe), "reason %q", reason)
	}

	stored, err := f.lc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialized, stored.Status)
}

func TestLifecycle_FullJourney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.advance(t, model.StatusCollected)
	boxID := *o.BoxID
	assert.Equal(t, model.BoxOccupied, f.box(t, boxID).Status)

	f.payments.EXPECT().Checkout(gomock.Any(), o.ID, model.PaymentVNPay).Return("https://pay.example/1", nil)
	res, err := f.lc.Checkout(ctx, o.ID, model.PaymentVNPay)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/1", res.PaymentURL)
	assert.False(t, res.AlreadyPaid)

	stored, err := f.lc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCollected, stored.Status, "checkout does not move the order")
	assert.Equal(t, model.PaymentVNPay, stored.PaymentMethod)

	_, err = f.lc.ConfirmPayment(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.lc.MarkReady(ctx, o.ID)
	require.NoError(t, err)

	done, err := f.lc.Complete(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Nil(t, done.BoxID)
	assert.Equal(t, model.BoxAvailable, f.box(t, boxID).Status)

	history, err := f.lc.History(ctx, o.ID)
	require.NoError(t, err)
	var path []model.OrderStatus
	for _, h := range history {
		path = append(path, h.To)
	}
	assert.Equal(t, []model.OrderStatus{
		model.StatusInitialized,
		model.StatusReserved,
		model.StatusWaiting,
		model.StatusCollected,
		model.StatusProcessing,
		model.StatusReady,
		model.StatusCompleted,
	}, path)
}

func TestLifecycle_ReturnReleasesBox(t *testing.T) {
	f := newFixture(t)

	o := f.advance(t, model.StatusReady)
	boxID := *o.BoxID

	returned, err := f.lc.Return(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, returned.Status)
	assert.Nil(t, returned.BoxID)
	assert.Equal(t, model.BoxAvailable, f.box(t, boxID).Status)
}

func TestLifecycle_CheckoutAfterDuplicateConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.advance(t, model.StatusProcessing)

	again, err := f.lc.ConfirmPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, again.Status)

	// no payment gateway call expected
	res, err := f.lc.Checkout(ctx, o.ID, model.PaymentMomo)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPaid)
	assert.Empty(t, res.PaymentURL)

	stored, err := f.lc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
}

func TestLifecycle_ConfirmPaymentIdempotentAfterProcessing(t *testing.T) {
	for _, status := range []model.OrderStatus{model.StatusProcessing, model.StatusReady} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			o := f.advance(t, status)

			got, err := f.lc.ConfirmPayment(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
		})
	}
}

func TestLifecycle_ConcurrentPaymentConfirmations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.advance(t, model.StatusCollected)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.lc.ConfirmPayment(ctx, o.ID)
			assert.NoError(t, err)
			assert.Equal(t, model.StatusProcessing, got.Status)
		}()
	}
	wg.Wait()

	history, err := f.lc.History(ctx, o.ID)
	require.NoError(t, err)
	processing := 0
	for _, h := range history {
		if h.To == model.StatusProcessing {
			processing++
		}
	}
	assert.Equal(t, 1, processing)
}

func TestLifecycle_TerminalOrdersRejectMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.advance(t, model.StatusWaiting)
	_, err := f.lc.Cancel(ctx, o.ID, "customer request")
	require.NoError(t, err)

	mutations := map[string]func() error{
		"reserve": func() error { _, err := f.lc.Reserve(ctx, o.ID, 1); return err },
		"confirm": func() error { _, err := f.lc.ConfirmPlacement(ctx, o.ID); return err },
		"collect": func() error { _, err := f.lc.Collect(ctx, o.ID); return err },
		"checkout": func() error {
			_, err := f.lc.Checkout(ctx, o.ID, model.PaymentCash)
			return err
		},
		"confirm payment": func() error { _, err := f.lc.ConfirmPayment(ctx, o.ID); return err },
		"ready":           func() error { _, err := f.lc.MarkReady(ctx, o.ID); return err },
		"return":          func() error { _, err := f.lc.Return(ctx, o.ID); return err },
		"complete":        func() error { _, err := f.lc.Complete(ctx, o.ID); return err },
		"cancel":          func() error { _, err := f.lc.Cancel(ctx, o.ID, "again"); return err },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			var te *apperr.TerminalStateError
			err := mutate()
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Equal(t, o.ID, te.OrderID)
			assert.Equal(t, string(model.StatusCanceled), te.Status)
		})
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		at       model.OrderStatus
		do       func(f *fixture, id string) error
		wantFrom model.OrderStatus
		wantTo   model.OrderStatus
	}{
		{
			name: "ready before processing",
			at:   model.StatusInitialized,
			do:   func(f *fixture, id string) error { _, err := f.lc.MarkReady(ctx, id); return err },
			wantFrom: model.StatusInitialized, wantTo: model.StatusReady,
		},
		{
			name: "collect before placement",
			at:   model.StatusReserved,
			do:   func(f *fixture, id string) error { _, err := f.lc.Collect(ctx, id); return err },
			wantFrom: model.StatusReserved, wantTo: model.StatusCollected,
		},
		{
			name: "confirm placement twice",
			at:   model.StatusWaiting,
			do:   func(f *fixture, id string) error { _, err := f.lc.ConfirmPlacement(ctx, id); return err },
			wantFrom: model.StatusWaiting, wantTo: model.StatusWaiting,
		},
		{
			name: "checkout before collection",
			at:   model.StatusWaiting,
			do: func(f *fixture, id string) error {
				_, err := f.lc.Checkout(ctx, id, model.PaymentVNPay)
				return err
			},
			wantFrom: model.StatusWaiting, wantTo: model.StatusProcessing,
		},
		{
			name: "payment before collection",
			at:   model.StatusReserved,
			do:   func(f *fixture, id string) error { _, err := f.lc.ConfirmPayment(ctx, id); return err },
			wantFrom: model.StatusReserved, wantTo: model.StatusProcessing,
		},
		{
			name: "complete while processing",
			at:   model.StatusProcessing,
			do:   func(f *fixture, id string) error { _, err := f.lc.Complete(ctx, id); return err },
			wantFrom: model.StatusProcessing, wantTo: model.StatusCompleted,
		},
		{
			name: "reserve twice",
			at:   model.StatusReserved,
			do:   func(f *fixture, id string) error { _, err := f.lc.Reserve(ctx, id, 0); return err },
			wantFrom: model.StatusReserved, wantTo: model.StatusReserved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.advance(t, tt.at)

			err := tt.do(f, o.ID)
			var ite *apperr.InvalidTransitionError
			require.True(t, errors.As(err, &ite), "got %v", err)
			assert.Equal(t, string(tt.wantFrom), ite.From)
			assert.Equal(t, string(tt.wantTo), ite.To)

			stored, err := f.lc.Get(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.at, stored.Status)
		})
	}
}

func TestLifecycle_ConfirmPlacementWithoutBox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Create(ctx, &model.Order{ID: "legacy", LockerID: 1, Status: model.StatusReserved, Pin: "555555"}))

	_, err := f.lc.ConfirmPlacement(ctx, "legacy")
	var pe *apperr.PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "confirm placement", pe.Op)
}

func TestLifecycle_NoCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.advance(t, model.StatusReserved)
	f.advance(t, model.StatusReserved)
	o := f.create(t)

	_, err := f.lc.Reserve(ctx, o.ID, 0)
	var nc *apperr.NoCapacityError
	require.True(t, errors.As(err, &nc))

	stored, err := f.lc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialized, stored.Status)
	assert.Nil(t, stored.BoxID)
}

func TestLifecycle_UniquePins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pins := []string{"111111", "111111", "111111", "222222"}
	f.lc.genPin = func() (string, error) {
		p := pins[0]
		pins = pins[1:]
		return p, nil
	}

	first := f.advance(t, model.StatusReserved)
	assert.Equal(t, "111111", first.Pin)

	second := f.create(t)
	second, err := f.lc.Reserve(ctx, second.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "222222", second.Pin)
}

func TestLifecycle_PinsExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.lc.genPin = func() (string, error) { return "111111", nil }
	f.advance(t, model.StatusReserved)

	o := f.create(t)
	_, err := f.lc.Reserve(ctx, o.ID, 0)
	assert.ErrorIs(t, err, ErrPinExhausted)
	assert.Equal(t, model.BoxAvailable, f.box(t, 2).Status, "box is given back")
}

func TestLifecycle_ReserveSaveFailureReleasesBox(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_order.NewMockRepository(ctrl)
	alloc := mock_order.NewMockAllocator(ctrl)
	lc := New(repo, alloc, mock_order.NewMockPaymentGateway(ctrl), nil)
	ctx := context.Background()

	repo.EXPECT().Get(gomock.Any(), "o-1").Return(&model.Order{ID: "o-1", LockerID: 3, Status: model.StatusInitialized}, nil)
	alloc.EXPECT().Reserve(gomock.Any(), int64(3), "o-1").Return(model.Box{ID: 9, LockerID: 3, Status: model.BoxReserved}, nil)
	repo.EXPECT().ActivePinExists(gomock.Any(), gomock.Any()).Return(false, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	alloc.EXPECT().Release(gomock.Any(), int64(9), "o-1").Return(nil)

	_, err := lc.Reserve(ctx, "o-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update order")
}

// flakyRepository fails the next n updates.
type flakyRepository struct {
	*MemoryRepository
	failures int
}

func (r *flakyRepository) Update(ctx context.Context, o *model.Order) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("db down")
	}
	return r.MemoryRepository.Update(ctx, o)
}

func TestLifecycle_CancelRetryKeepsReassignedBox(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepository{MemoryRepository: NewMemoryRepository()}
	boxes := locker.NewMemoryBoxes(
		model.Box{ID: 1, LockerID: 1, Number: "01", Status: model.BoxAvailable},
		model.Box{ID: 2, LockerID: 1, Number: "02", Status: model.BoxAvailable},
	)
	lc := New(repo, locker.NewAllocator(boxes, nil), nil, nil)

	first, err := lc.CreateOrder(ctx, model.CreateOrderRequest{LockerID: 1})
	require.NoError(t, err)
	first, err = lc.Reserve(ctx, first.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), *first.BoxID)

	repo.failures = 1
	_, err = lc.Cancel(ctx, first.ID, "changed my mind")
	require.Error(t, err)

	second, err := lc.CreateOrder(ctx, model.CreateOrderRequest{LockerID: 1})
	require.NoError(t, err)
	second, err = lc.Reserve(ctx, second.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), *second.BoxID, "the freed box is handed out again")

	canceled, err := lc.Cancel(ctx, first.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	box, err := boxes.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.BoxReserved, box.Status)
	assert.Equal(t, second.ID, box.OrderID)
}

func TestLifecycle_CheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.advance(t, model.StatusCollected)

	_, err := f.lc.Checkout(ctx, o.ID, "BITCOIN")
	var pe *apperr.PreconditionError
	assert.True(t, errors.As(err, &pe))

	f.payments.EXPECT().Checkout(gomock.Any(), o.ID, model.PaymentCash).Return("", errors.New("gateway down"))
	_, err = f.lc.Checkout(ctx, o.ID, model.PaymentCash)
	require.Error(t, err)

	stored, err := f.lc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PaymentMethod)
}

func TestLifecycle_LookupByPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.advance(t, model.StatusReserved)

	view, err := f.lc.LookupByPin(ctx, active.Pin)
	require.NoError(t, err)
	assert.Equal(t, model.PickupView{
		OrderID:  active.ID,
		Status:   model.StatusReserved,
		LockerID: 1,
		BoxID:    active.BoxID,
	}, view)

	finished := f.advance(t, model.StatusReserved)
	_, err = f.lc.Cancel(ctx, finished.ID, "changed mind")
	require.NoError(t, err)

	for _, pin := range []string{"123456", "12ab56", "", "1234567", finished.Pin} {
		if pin == active.Pin {
			continue
		}
		_, err := f.lc.LookupByPin(ctx, pin)
		assert.ErrorIs(t, err, apperr.ErrNotFound, "pin %q", pin)
	}
}

func TestLifecycle_NotifierFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock_order.NewMockNotifier(ctrl)
	f := newFixture(t, WithNotifier(notifier))

	var got []model.StatusChange
	notifier.EXPECT().OrderStatusChanged(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c model.StatusChange) error {
		got = append(got, c)
		return errors.New("broker unavailable")
	}).Times(2)

	o := f.advance(t, model.StatusReserved)
	assert.Equal(t, model.StatusReserved, o.Status)

	require.Len(t, got, 2)
	assert.Equal(t, model.StatusInitialized, got[1].From)
	assert.Equal(t, model.StatusReserved, got[1].To)
}

func TestLifecycle_GetUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.lc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.lc.ConfirmPayment(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCanTransition(t *testing.T) {
	allowed := map[model.OrderStatus][]model.OrderStatus{
		model.StatusInitialized: {model.StatusReserved, model.StatusCanceled},
		model.StatusReserved:    {model.StatusWaiting, model.StatusCanceled},
		model.StatusWaiting:     {model.StatusCollected, model.StatusCanceled},
		model.StatusCollected:   {model.StatusProcessing, model.StatusCanceled},
		model.StatusProcessing:  {model.StatusReady, model.StatusCanceled},
		model.StatusReady:       {model.StatusReturned, model.StatusCompleted, model.StatusCanceled},
	}

	for _, from := range model.AllStatuses {
		for _, to := range model.AllStatuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
