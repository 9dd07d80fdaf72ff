package reservation

import (
	"context"
	"iter"
	"time"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/vaccine"
)

// Schedule is what a user sees when searching a date.
type Schedule struct {
	Date       time.Time
	Caregivers []string
	Vaccines   []vaccine.Stock
}

// SearchSchedule lists the caregivers free on date and the stock of every
// vaccine. Any logged-in identity may search.
func (e *Engine) SearchSchedule(ctx context.Context, who account.Identity, date string) (Schedule, error) {
	if !who.Authenticated() {
		return Schedule{}, ErrNotAuthenticated
	}
	d, err := availability.ParseDate(date)
	if err != nil {
		return Schedule{}, err
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	s := Schedule{Date: d}
	err = e.Store.View(ctx, func(l Ledgers) error {
		var err error
		if s.Caregivers, err = l.Availability.Caregivers(ctx, d); err != nil {
			return err
		}
		s.Vaccines, err = l.Inventory.List(ctx)
		return err
	})
	if err != nil {
		return Schedule{}, classify(err)
	}
	return s, nil
}

// Appointments lists the appointments of who, patient or caregiver side,
// ordered by id.
func (e *Engine) Appointments(ctx context.Context, who account.Identity) (iter.Seq[appointment.Appointment], error) {
	if !who.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	var seq iter.Seq[appointment.Appointment]
	err := e.Store.View(ctx, func(l Ledgers) error {
		var err error
		if who.IsCaregiver() {
			seq, err = l.Appointments.ListForCaregiver(ctx, who.Username())
		} else {
			seq, err = l.Appointments.ListForPatient(ctx, who.Username())
		}
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return seq, nil
}

// Stock reports the doses left for one vaccine.
func (e *Engine) Stock(ctx context.Context, vaccineName string) (vaccine.Stock, bool, error) {
	ctx, cancel := e.txContext(ctx)
	defer cancel()

	var (
		s  vaccine.Stock
		ok bool
	)
	err := e.Store.View(ctx, func(l Ledgers) error {
		var err error
		s, ok, err = l.Inventory.Lookup(ctx, vaccineName)
		return err
	})
	if err != nil {
		return vaccine.Stock{}, false, classify(err)
	}
	return s, ok, nil
}
