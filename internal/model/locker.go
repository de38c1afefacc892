package model

type BoxStatus string

const (
	BoxAvailable    BoxStatus = "AVAILABLE"
	BoxReserved     BoxStatus = "RESERVED"
	BoxOccupied     BoxStatus = "OCCUPIED"
	BoxOutOfService BoxStatus = "OUT_OF_SERVICE"
)

type BoxSize string

const (
	BoxSmall  BoxSize = "SMALL"
	BoxMedium BoxSize = "MEDIUM"
	BoxLarge  BoxSize = "LARGE"
)

type Box struct {
	ID       int64     `json:"id"`
	LockerID int64     `json:"lockerId"`
	Number   string    `json:"boxNumber"`
	Size     BoxSize   `json:"size,omitempty"`
	Status   BoxStatus `json:"status"`
	OrderID  string    `json:"orderId,omitempty"`
}

type LockerStatus string

const (
	LockerActive      LockerStatus = "ACTIVE"
	LockerMaintenance LockerStatus = "MAINTENANCE"
	LockerInactive    LockerStatus = "INACTIVE"
)

type Locker struct {
	ID             int64        `json:"id"`
	StoreID        int64        `json:"storeId"`
	Name           string       `json:"name"`
	Code           string       `json:"code,omitempty"`
	Location       string       `json:"location,omitempty"`
	Status         LockerStatus `json:"status"`
	TotalBoxes     int          `json:"totalBoxes"`
	AvailableBoxes int          `json:"availableBoxes"`
	Boxes          []Box        `json:"boxes,omitempty"`
}

type VerifyPinRequest struct {
	BoxID      int64  `json:"boxId"`
	PinCode    string `json:"pinCode"`
	LockerCode string `json:"lockerCode,omitempty"`
}

type VerifyPinResponse struct {
	Valid       bool   `json:"valid"`
	OrderID     int64  `json:"orderId,omitempty"`
	BoxID       int64  `json:"boxId,omitempty"`
	BoxNumber   int    `json:"boxNumber,omitempty"`
	LockerCode  string `json:"lockerCode,omitempty"`
	OrderStatus string `json:"orderStatus,omitempty"`
	Message     string `json:"message,omitempty"`
}

type UnlockAction string

const (
	UnlockDropOff UnlockAction = "DROP_OFF"
	UnlockPickup  UnlockAction = "PICKUP"
)

type UnlockBoxRequest struct {
	BoxID      int64        `json:"boxId"`
	PinCode    string       `json:"pinCode"`
	LockerCode string       `json:"lockerCode,omitempty"`
	ActionType UnlockAction `json:"actionType,omitempty"`
}

type UnlockBoxResponse struct {
	Success         bool   `json:"success"`
	BoxID           int64  `json:"boxId,omitempty"`
	BoxNumber       int    `json:"boxNumber,omitempty"`
	LockerCode      string `json:"lockerCode,omitempty"`
	OrderID         int64  `json:"orderId,omitempty"`
	Message         string `json:"message,omitempty"`
	UnlockToken     string `json:"unlockToken,omitempty"`
	UnlockTimestamp int64  `json:"unlockTimestamp,omitempty"`
}
