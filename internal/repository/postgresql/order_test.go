package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	mock_database "gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository/postgresql"
)

func testOrder(t *testing.T) *model.Order {
	t.Helper()
	changed, err := time.Parse("2006-01-02", "2025-01-01")
	require.NoError(t, err)
	box := int64(7)
	return &model.Order{
		ID:         "order-123",
		CustomerID: "user-456",
		Type:       model.OrderTypeStandardDropoff,
		LockerID:   3,
		Status:     model.StatusReserved,
		BoxID:      &box,
		Pin:        "123456",
		Total:      5000,
		CreatedAt:  changed.UTC(),
		UpdatedAt:  changed.UTC(),
	}
}

func TestOrderRepo_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)
		o := testOrder(t)

		mockDB.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(o.ID),
			gomock.Eq(o.CustomerID),
			gomock.Eq(string(o.Type)),
			gomock.Eq(o.LockerID),
			gomock.Eq(string(o.Status)),
			gomock.Eq(o.BoxID),
			gomock.Eq(o.Pin),
			gomock.Eq(""),
			gomock.Eq(o.Total),
			gomock.Eq(""),
			gomock.Eq(o.CreatedAt),
			gomock.Eq(o.UpdatedAt),
		).Return(nil, nil)

		assert.NoError(t, repo.Create(ctx, o))
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		expectedErr := errors.New("database error")
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, expectedErr)

		err := repo.Create(ctx, testOrder(t))
		assert.Equal(t, expectedErr, err)
	})
}

func TestOrderRepo_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)
		want := testOrder(t)

		mockDB.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(want.ID)).
			SetArg(1, *repository.OrderFromModel(want)).
			Return(nil)

		got, err := repo.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		mockDB.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("missing")).
			Return(pgx.ErrNoRows)

		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestOrderRepo_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)
		o := testOrder(t)
		o.Status = model.StatusWaiting

		gomock.InOrder(
			mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil),
			mockTx.EXPECT().
				Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(o.ID)).
				SetArg(1, string(model.StatusReserved)).
				Return(nil),
			mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(),
				gomock.Eq(string(model.StatusWaiting)),
				gomock.Eq(o.BoxID),
				gomock.Eq(o.Pin),
				gomock.Any(),
				gomock.Eq(o.Total),
				gomock.Any(),
				gomock.Eq(o.UpdatedAt),
				gomock.Eq(o.ID)).
				Return(nil, nil),
			mockTx.EXPECT().Commit(gomock.Any()).Return(nil),
		)

		assert.NoError(t, repo.Update(ctx, o))
	})

	t.Run("missing order rolls back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(pgx.ErrNoRows)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := repo.Update(ctx, testOrder(t))
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("finished order is not overwritten", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			SetArg(1, string(model.StatusCanceled)).
			Return(nil)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := repo.Update(ctx, testOrder(t))
		var terminal *apperr.TerminalStateError
		require.ErrorAs(t, err, &terminal)
		assert.Equal(t, string(model.StatusCanceled), terminal.Status)
	})

	t.Run("begin error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		mockDB.EXPECT().BeginTx(gomock.Any()).Return(nil, errors.New("pool closed"))

		err := repo.Update(ctx, testOrder(t))
		assert.ErrorContains(t, err, "pool closed")
	})
}

func TestOrderRepo_ActivePinExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := postgresql.NewOrderRepo(mockDB)

	mockDB.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("123456"), gomock.Any()).
		SetArg(1, true).
		Return(nil)

	exists, err := repo.ActivePinExists(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderRepo_GetByPin(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := postgresql.NewOrderRepo(mockDB)

	mockDB.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("000000"), gomock.Any()).
		Return(pgx.ErrNoRows)

	_, err := repo.GetByPin(context.Background(), "000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrderRepo_List(t *testing.T) {
	ctx := context.Background()

	t.Run("limited", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)
		o := testOrder(t)

		mockDB.EXPECT().
			Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(o.CustomerID), gomock.Eq(10)).
			SetArg(1, []*repository.Order{repository.OrderFromModel(o)}).
			Return(nil)

		got, err := repo.List(ctx, o.CustomerID, 10)
		require.NoError(t, err)
		assert.Equal(t, []*model.Order{o}, got)
	})

	t.Run("unlimited", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewOrderRepo(mockDB)

		mockDB.EXPECT().
			Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("user-456"), gomock.Nil()).
			Return(nil)

		got, err := repo.List(ctx, "user-456", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOrderRepo_ListActive(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	repo := postgresql.NewOrderRepo(mockDB)

	dbErr := errors.New("database error")
	mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(dbErr)

	_, err := repo.ListActive(context.Background())
	assert.Equal(t, dbErr, err)
}
