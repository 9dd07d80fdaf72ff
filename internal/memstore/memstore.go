// Package memstore keeps every ledger in process memory. A transaction holds
// the store's write lock for its whole duration and journals an undo action
// for each applied write; a failed transaction replays the journal backwards.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/reservation"
)

var errReadOnly = errors.New("memstore: write in read-only transaction")

type accountKey struct {
	role     account.Role
	username string
}

type Store struct {
	mu sync.RWMutex

	stocks map[string]int
	// slots[date][caregiver]
	slots  map[string]map[string]struct{}
	appts  map[int64]appointment.Appointment
	nextID int64

	accounts map[accountKey]account.Account
}

func New() *Store {
	return &Store{
		stocks:   make(map[string]int),
		slots:    make(map[string]map[string]struct{}),
		appts:    make(map[int64]appointment.Appointment),
		accounts: make(map[accountKey]account.Account),
	}
}

type undo struct {
	name   string
	action func()
}

// tx implements vaccine.Inventory, availability.Ledger and
// appointment.Ledger over the store's maps.
type tx struct {
	s        *Store
	writable bool
	journal  []undo
}

func (t *tx) ledgers() reservation.Ledgers {
	return reservation.Ledgers{Inventory: t, Availability: t, Appointments: t}
}

func (t *tx) record(name string, action func()) {
	t.journal = append(t.journal, undo{name: name, action: action})
}

func (t *tx) rollback() {
	for i := len(t.journal) - 1; i >= 0; i-- {
		logger.LogDebug("memstore: undo %s", t.journal[i].name)
		t.journal[i].action()
	}
	t.journal = nil
}

// begin is called by every ledger operation.
func (t *tx) begin(ctx context.Context, write bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if write && !t.writable {
		return errReadOnly
	}
	return nil
}

func (s *Store) Atomically(ctx context.Context, fn func(reservation.Ledgers) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, writable: true}
	if err := fn(t.ledgers()); err != nil {
		if len(t.journal) > 0 {
			logger.LogDebug("memstore: rolling back %d writes: %v", len(t.journal), err)
		}
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(reservation.Ledgers) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &tx{s: s}
	return fn(t.ledgers())
}

func (s *Store) Close() error { return nil }
