package model

import (
	"encoding/json"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusInitialized OrderStatus = "INITIALIZED"
	StatusReserved    OrderStatus = "RESERVED"
	StatusWaiting     OrderStatus = "WAITING"
	StatusCollected   OrderStatus = "COLLECTED"
	StatusProcessing  OrderStatus = "PROCESSING"
	StatusReady       OrderStatus = "READY"
	StatusReturned    OrderStatus = "RETURNED"
	StatusCompleted   OrderStatus = "COMPLETED"
	StatusCanceled    OrderStatus = "CANCELED"
)

var AllStatuses = []OrderStatus{
	StatusInitialized,
	StatusReserved,
	StatusWaiting,
	StatusCollected,
	StatusProcessing,
	StatusReady,
	StatusReturned,
	StatusCompleted,
	StatusCanceled,
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusReturned
}

// HoldsBox reports whether an order in this status must have a box bound.
func (s OrderStatus) HoldsBox() bool {
	switch s {
	case StatusReserved, StatusWaiting, StatusCollected, StatusProcessing, StatusReady:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentVNPay PaymentMethod = "VNPAY"
	PaymentMomo  PaymentMethod = "MOMO"
	PaymentCash  PaymentMethod = "CASH"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentVNPay || m == PaymentMomo || m == PaymentCash
}

type OrderType string

const (
	OrderTypeStandardDropoff OrderType = "STANDARD_DROPOFF"
	OrderTypeLaundry         OrderType = "LAUNDRY"
	OrderTypeStorage         OrderType = "STORAGE"
)

type Order struct {
	ID                 string        `json:"id"`
	CustomerID         string        `json:"customerId"`
	Type               OrderType     `json:"type,omitempty"`
	LockerID           int64         `json:"lockerId,omitempty"`
	Status             OrderStatus   `json:"status"`
	BoxID              *int64        `json:"boxId,omitempty"`
	Pin                string        `json:"pin,omitempty"`
	PaymentMethod      PaymentMethod `json:"paymentMethod,omitempty"`
	Total              int64         `json:"totalAmount"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	CancellationReason string        `json:"cancelReason,omitempty"`
}

// Clone returns a copy that shares no pointers with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.BoxID != nil {
		id := *o.BoxID
		c.BoxID = &id
	}
	return &c
}

// UnmarshalJSON accepts numeric ids, which is what the backend sends, as well
// as string ids used by the local stores.
func (o *Order) UnmarshalJSON(b []byte) error {
	type alias Order
	aux := struct {
		ID         json.RawMessage `json:"id"`
		CustomerID json.RawMessage `json:"customerId"`
		UserID     json.RawMessage `json:"userId"`
		*alias
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	o.ID = rawID(aux.ID)
	o.CustomerID = rawID(aux.CustomerID)
	if o.CustomerID == "" {
		o.CustomerID = rawID(aux.UserID)
	}
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type CreateOrderRequest struct {
	CustomerID   string    `json:"-"`
	Type         OrderType `json:"type"`
	LockerID     int64     `json:"lockerId"`
	BoxID        *int64    `json:"boxId,omitempty"`
	ServiceIDs   []int64   `json:"serviceIds,omitempty"`
	CustomerNote string    `json:"customerNote,omitempty"`
	Promotion    string    `json:"promotionCode,omitempty"`
	Total        int64     `json:"-"`
}

// PickupView is what a PIN holder is allowed to see about an order.
type PickupView struct {
	OrderID  string      `json:"orderId"`
	Status   OrderStatus `json:"status"`
	LockerID int64       `json:"lockerId"`
	BoxID    *int64      `json:"boxId,omitempty"`
}

type StatusChange struct {
	OrderID   string      `json:"orderId"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Reason    string      `json:"reason,omitempty"`
	ChangedAt time.Time   `json:"changedAt"`
}

type CheckoutResult struct {
	PaymentURL string `json:"paymentUrl"`
	// AlreadyPaid is set when the order had already moved to payment processing.
	AlreadyPaid bool `json:"-"`
}

type OrderTracking struct {
	OrderID           int64       `json:"orderId"`
	Status            OrderStatus `json:"status"`
	StatusDescription string      `json:"statusDescription"`
	PinCode           string      `json:"pinCode,omitempty"`
	LockerName        string      `json:"lockerName,omitempty"`
	LockerCode        string      `json:"lockerCode,omitempty"`
	BoxNumber         int         `json:"boxNumber,omitempty"`
	IsPaid            bool        `json:"isPaid"`
	NextAction        string      `json:"nextAction"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}
