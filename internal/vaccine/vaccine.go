package vaccine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrUnknownVaccine = errors.New("unknown vaccine")
	ErrOutOfStock     = errors.New("out of stock")
	ErrInvalidCount   = errors.New("invalid dose count")
	ErrInvalidName    = errors.New("invalid vaccine name")
)

// Stock is the available dose count of one named vaccine.
type Stock struct {
	Name  string
	Doses int
}

// Inventory tracks vaccine stock. Implementations are bound to a store
// transaction; they do no locking of their own.
type Inventory interface {
	// AddDoses creates the stock on first use and returns the new count.
	AddDoses(ctx context.Context, name string, count int) (int, error)
	// ReserveOneDose decrements the stock by one. It fails with
	// ErrUnknownVaccine or ErrOutOfStock without changing anything.
	ReserveOneDose(ctx context.Context, name string) error
	// ReleaseDose puts one dose back.
	ReleaseDose(ctx context.Context, name string) error
	Lookup(ctx context.Context, name string) (Stock, bool, error)
	// List returns every stock ordered by name.
	List(ctx context.Context) ([]Stock, error)
}

func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}

// Add returns current+count, refusing negative input and results.
func Add(current, count int) (int, error) {
	if count < 0 {
		return current, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	next := current + count
	if next < 0 {
		// int overflow
		return current, fmt.Errorf("%w: %d + %d", ErrInvalidCount, current, count)
	}
	return next, nil
}
