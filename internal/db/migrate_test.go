package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	mock_database "gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db/mocks"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, nil)
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq("0001_init.sql")).Return(nil, nil)
		mockTx.EXPECT().Commit(gomock.Any()).Return(nil)

		assert.NoError(t, db.Migrate(ctx, mockDB, zap.NewNop()))
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, nil)
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any()).
			SetArg(1, []string{"0001_init.sql"}).
			Return(nil)

		assert.NoError(t, db.Migrate(ctx, mockDB, zap.NewNop()))
	})

	t.Run("failed migration rolls back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, nil)
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		mockDB.EXPECT().BeginTx(gomock.Any()).Return(mockTx, nil)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any()).Return(nil, errors.New("syntax error"))
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := db.Migrate(ctx, mockDB, zap.NewNop())
		assert.ErrorContains(t, err, "0001_init.sql")
	})
}
