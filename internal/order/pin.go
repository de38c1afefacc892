package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	PinLength = 6

	maxPinAttempts = 32
)

var (
	pinSpace = big.NewInt(1_000_000)

	ErrPinExhausted = errors.New("could not issue a unique pin")
)

// ValidPin reports whether pin has the shape of an issued pin.
func ValidPin(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomPin() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", PinLength, n.Int64()), nil
}

// issuePin draws pins until one is not held by an active order. Callers hold
// pinMu until the order carrying the pin is saved.
func (l *Lifecycle) issuePin(ctx context.Context) (string, error) {
	for i := 0; i < maxPinAttempts; i++ {
		pin, err := l.genPin()
		if err != nil {
			return "", err
		}
		taken, err := l.repo.ActivePinExists(ctx, pin)
		if err != nil {
			return "", fmt.Errorf("failed to check pin: %w", err)
		}
		if !taken {
			return pin, nil
		}
	}
	return "", ErrPinExhausted
}
