package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/locker"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository"
)

const boxColumns = "id, locker_id, number, size, status, order_id"

type BoxRepo struct {
	db db.DB
}

func NewBoxRepo(db db.DB) *BoxRepo {
	return &BoxRepo{db: db}
}

func (r *BoxRepo) ListByLocker(ctx context.Context, lockerID int64) ([]model.Box, error) {
	var rows []*repository.Box
	err := r.db.Select(ctx, &rows, "SELECT "+boxColumns+" FROM boxes WHERE locker_id = $1 ORDER BY id", lockerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Box, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToModel())
	}
	return out, nil
}

func (r *BoxRepo) Get(ctx context.Context, boxID int64) (model.Box, error) {
	var row repository.Box
	err := r.db.Get(ctx, &row, "SELECT "+boxColumns+" FROM boxes WHERE id = $1", boxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Box{}, repository.ErrObjectNotFound
		}
		return model.Box{}, err
	}
	return row.ToModel(), nil
}

// CompareAndSwap is a single conditional UPDATE on status and binding. A NULL
// order_id compares equal to an empty OrderID.
func (r *BoxRepo) CompareAndSwap(ctx context.Context, boxID int64, from, to locker.Binding) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE boxes
        SET status = $1, order_id = NULLIF($2, '')
        WHERE id = $3 AND status = $4 AND COALESCE(order_id, '') = $5
    `, string(to.Status), to.OrderID, boxID, string(from.Status), from.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, boxID); err != nil {
			return err
		}
		return locker.ErrConflict
	}
	return nil
}
