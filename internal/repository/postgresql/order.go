package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository"
)

const orderColumns = `id, customer_id, type, locker_id, status, box_id, pin,
            payment_method, total, cancel_reason, created_at, updated_at`

var terminalStatuses = []string{
	string(model.StatusCompleted),
	string(model.StatusCanceled),
	string(model.StatusReturned),
}

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	row := repository.OrderFromModel(o)
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (`+orderColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, row.ID, row.CustomerID, row.Type, row.LockerID, row.Status, row.BoxID, row.Pin,
		row.PaymentMethod, row.Total, row.CancelReason, row.CreatedAt, row.UpdatedAt)
	return err
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	var row repository.Order
	err := r.db.Get(ctx, &row, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return row.ToModel(), nil
}

// Update locks the row for the duration of the write. A finished order is
// never overwritten with a different status, which guards against another
// process having completed or cancelled it in the meantime.
func (r *OrderRepo) Update(ctx context.Context, o *model.Order) error {
	row := repository.OrderFromModel(o)
	return db.InTx(ctx, r.db, func(tx db.Tx) error {
		var current string
		err := tx.Get(ctx, &current, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", row.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrObjectNotFound
			}
			return err
		}
		if status := model.OrderStatus(current); status.IsTerminal() && current != row.Status {
			return &apperr.TerminalStateError{OrderID: row.ID, Status: current}
		}

		_, err = tx.Exec(ctx, `
        UPDATE orders
        SET
            status = $1,
            box_id = $2,
            pin = $3,
            payment_method = $4,
            total = $5,
            cancel_reason = $6,
            updated_at = $7
        WHERE id = $8
    `, row.Status, row.BoxID, row.Pin, row.PaymentMethod, row.Total, row.CancelReason, row.UpdatedAt, row.ID)
		return err
	})
}

// GetByPin prefers the active holder of a PIN over finished orders that used
// it before.
func (r *OrderRepo) GetByPin(ctx context.Context, pin string) (*model.Order, error) {
	var row repository.Order
	err := r.db.Get(ctx, &row, `
        SELECT `+orderColumns+` FROM orders
        WHERE pin = $1
        ORDER BY (status <> ALL($2)) DESC, updated_at DESC
        LIMIT 1
    `, pin, terminalStatuses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return row.ToModel(), nil
}

func (r *OrderRepo) ActivePinExists(ctx context.Context, pin string) (bool, error) {
	var exists bool
	err := r.db.Get(ctx, &exists, `
        SELECT EXISTS (
            SELECT 1 FROM orders WHERE pin = $1 AND status <> ALL($2)
        )
    `, pin, terminalStatuses)
	if err != nil {
		return false, fmt.Errorf("failed to check pin: %w", err)
	}
	return exists, nil
}

// List returns the newest orders of a customer first. A non-positive limit
// returns all of them.
func (r *OrderRepo) List(ctx context.Context, customerID string, limit int) ([]*model.Order, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	var rows []*repository.Order
	err := r.db.Select(ctx, &rows, `
        SELECT `+orderColumns+` FROM orders
        WHERE customer_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, customerID, lim)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func (r *OrderRepo) ListActive(ctx context.Context) ([]*model.Order, error) {
	var rows []*repository.Order
	err := r.db.Select(ctx, &rows, `
        SELECT `+orderColumns+` FROM orders
        WHERE status <> ALL($1)
        ORDER BY created_at ASC
    `, terminalStatuses)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []*repository.Order) []*model.Order {
	out := make([]*model.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToModel())
	}
	return out
}
