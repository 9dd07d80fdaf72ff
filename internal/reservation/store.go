package reservation

import (
	"context"

	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/vaccine"
)

// Ledgers are the three ledgers as seen from inside one transaction.
type Ledgers struct {
	Inventory    vaccine.Inventory
	Availability availability.Ledger
	Appointments appointment.Ledger
}

// Store is the transaction boundary of the engine.
//
// Atomically runs fn as one atomic transaction: if fn returns an error
// every effect it applied is undone before Atomically returns that error.
// View runs fn read-only against a consistent snapshot.
type Store interface {
	Atomically(ctx context.Context, fn func(Ledgers) error) error
	View(ctx context.Context, fn func(Ledgers) error) error
}
