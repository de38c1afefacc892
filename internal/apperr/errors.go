// Package apperr holds the error kinds surfaced to client surfaces. Callers
// match them with errors.As and show the specific kind to the user.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// AuthError reports a login or refresh failure. The session is cleared when
// one is returned from the session manager or the request gateway.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s failed", e.Op)
	}
	return fmt.Sprintf("auth: %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// PreconditionError reports an operation attempted before a required binding
// or argument exists, e.g. confirming placement without a box.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Op, e.Reason)
}

type TerminalStateError struct {
	OrderID string
	Status  string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("order %s is already %s", e.OrderID, e.Status)
}

type NoCapacityError struct {
	LockerID int64
	Reason   string
}

func (e *NoCapacityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("locker %d has no available box", e.LockerID)
	}
	return fmt.Sprintf("locker %d has no available box: %s", e.LockerID, e.Reason)
}

// NetworkError is a transport failure. It is distinct from an auth failure and
// is safe to offer to the user for retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("backend responded %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
