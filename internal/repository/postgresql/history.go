package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository"
)

type HistoryRepo struct {
	db db.DB
}

func NewHistoryRepo(db db.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Record(ctx context.Context, change model.StatusChange) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO order_history (
            order_id, from_status, to_status, reason, changed_at
        ) VALUES ($1, $2, $3, $4, $5)
    `, change.OrderID, string(change.From), string(change.To), change.Reason, change.ChangedAt)
	return err
}

func (r *HistoryRepo) History(ctx context.Context, orderID string) ([]model.StatusChange, error) {
	var entries []*repository.HistoryEntry
	err := r.db.Select(ctx, &entries, `
        SELECT id, order_id, from_status, to_status, reason, changed_at
        FROM order_history
        WHERE order_id = $1
        ORDER BY changed_at ASC, id ASC
    `, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]model.StatusChange, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToModel())
	}
	return out, nil
}
