package availability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the only accepted date format at the boundary.
const DateLayout = "2006-01-02"

var (
	ErrSlotNotFound = errors.New("availability slot not found")
	ErrInvalidDate  = errors.New("invalid date")
)

// Slot is one caregiver's offered availability on one calendar date.
type Slot struct {
	Date      time.Time
	Caregiver string
}

// Ledger tracks unconsumed slots. At most one slot exists per
// (date, caregiver) pair.
type Ledger interface {
	// Publish inserts the slot; publishing an existing slot is a no-op.
	Publish(ctx context.Context, caregiver string, date time.Time) error
	// PickCaregiver returns the lexicographically smallest caregiver with a
	// slot on date.
	PickCaregiver(ctx context.Context, date time.Time) (string, bool, error)
	// Consume removes the slot or fails with ErrSlotNotFound.
	Consume(ctx context.Context, caregiver string, date time.Time) error
	// Caregivers lists everyone free on date, ordered by username.
	Caregivers(ctx context.Context, date time.Time) ([]string, error)
}

// ParseDate parses a YYYY-MM-DD string into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	// time.Parse accepts this layout only with zero-padded fields
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return d, nil
}

// Day normalizes t to UTC midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key formats date for map keys and SQL text columns.
func Key(date time.Time) string {
	return date.Format(DateLayout)
}
