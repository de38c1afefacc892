package repository

import (
	"time"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

var ErrObjectNotFound = apperr.ErrNotFound

type Order struct {
	ID            string    `db:"id"`
	CustomerID    string    `db:"customer_id"`
	Type          string    `db:"type"`
	LockerID      int64     `db:"locker_id"`
	Status        string    `db:"status"`
	BoxID         *int64    `db:"box_id"`
	Pin           string    `db:"pin"`
	PaymentMethod string    `db:"payment_method"`
	Total         int64     `db:"total"`
	CancelReason  string    `db:"cancel_reason"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type Box struct {
	ID       int64   `db:"id"`
	LockerID int64   `db:"locker_id"`
	Number   string  `db:"number"`
	Size     string  `db:"size"`
	Status   string  `db:"status"`
	OrderID  *string `db:"order_id"`
}

type HistoryEntry struct {
	ID         int64     `db:"id"`
	OrderID    string    `db:"order_id"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	Reason     string    `db:"reason"`
	ChangedAt  time.Time `db:"changed_at"`
}

type Token struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func OrderFromModel(o *model.Order) *Order {
	row := &Order{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Type:          string(o.Type),
		LockerID:      o.LockerID,
		Status:        string(o.Status),
		Pin:           o.Pin,
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total,
		CancelReason:  o.CancellationReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.BoxID != nil {
		id := *o.BoxID
		row.BoxID = &id
	}
	return row
}

func (r *Order) ToModel() *model.Order {
	o := &model.Order{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		Type:               model.OrderType(r.Type),
		LockerID:           r.LockerID,
		Status:             model.OrderStatus(r.Status),
		Pin:                r.Pin,
		PaymentMethod:      model.PaymentMethod(r.PaymentMethod),
		Total:              r.Total,
		CancellationReason: r.CancelReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.BoxID != nil {
		id := *r.BoxID
		o.BoxID = &id
	}
	return o
}

func (r *Box) ToModel() model.Box {
	b := model.Box{
		ID:       r.ID,
		LockerID: r.LockerID,
		Number:   r.Number,
		Size:     model.BoxSize(r.Size),
		Status:   model.BoxStatus(r.Status),
	}
	if r.OrderID != nil {
		b.OrderID = *r.OrderID
	}
	return b
}

func (r *HistoryEntry) ToModel() model.StatusChange {
	return model.StatusChange{
		OrderID:   r.OrderID,
		From:      model.OrderStatus(r.FromStatus),
		To:        model.OrderStatus(r.ToStatus),
		Reason:    r.Reason,
		ChangedAt: r.ChangedAt,
	}
}
