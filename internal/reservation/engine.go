package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/vaccine"
)

// DefaultTimeout bounds a single store transaction when Engine.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Engine executes reservations and the writes that feed them. It is the only
// writer of the inventory, availability and appointment ledgers.
type Engine struct {
	Store   Store
	Timeout time.Duration
}

func NewEngine(st Store, timeout time.Duration) *Engine {
	return &Engine{Store: st, Timeout: timeout}
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	AppointmentID int64
	Caregiver     string
	Vaccine       string
	Date          time.Time
}

func (e *Engine) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := e.Timeout
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func requirePatient(who account.Identity) error {
	if !who.Authenticated() {
		return ErrNotAuthenticated
	}
	if !who.IsPatient() {
		return ErrPatientOnly
	}
	return nil
}

func requireCaregiver(who account.Identity) error {
	if !who.Authenticated() {
		return ErrNotAuthenticated
	}
	if !who.IsCaregiver() {
		return ErrCaregiverOnly
	}
	return nil
}

// Reserve books vaccineName on date for the patient who. The caregiver is the
// lexicographically smallest one free that day. Picking the caregiver,
// taking a dose, consuming the slot and recording the appointment happen in a
// single store transaction; on any failure none of them is visible.
func (e *Engine) Reserve(ctx context.Context, who account.Identity, date, vaccineName string) (Reservation, error) {
	if err := requirePatient(who); err != nil {
		return Reservation{}, err
	}
	d, err := availability.ParseDate(date)
	if err != nil {
		return Reservation{}, err
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	var res Reservation
	err = e.Store.Atomically(ctx, func(l Ledgers) error {
		caregiver, found, err := l.Availability.PickCaregiver(ctx, d)
		if err != nil {
			return err
		}
		stock, known, err := l.Inventory.Lookup(ctx, vaccineName)
		if err != nil {
			return err
		}
		// both conditions are reported before aborting
		var missing []error
		if !found {
			missing = append(missing, ErrNoCaregiverAvailable)
		}
		if !known || stock.Doses < 1 {
			missing = append(missing, ErrInsufficientDoses)
		}
		if len(missing) > 0 {
			return errors.Join(missing...)
		}

		if err := l.Inventory.ReserveOneDose(ctx, vaccineName); err != nil {
			if errors.Is(err, vaccine.ErrOutOfStock) || errors.Is(err, vaccine.ErrUnknownVaccine) {
				return fmt.Errorf("%w: %w", ErrInsufficientDoses, err)
			}
			return err
		}
		if err := l.Availability.Consume(ctx, caregiver, d); err != nil {
			return err
		}
		// recorded last so an id is only drawn once everything else applied
		id, err := l.Appointments.Record(ctx, appointment.Appointment{
			Patient:   who.Username(),
			Caregiver: caregiver,
			Vaccine:   vaccineName,
			Date:      d,
		})
		if err != nil {
			return err
		}
		res = Reservation{AppointmentID: id, Caregiver: caregiver, Vaccine: vaccineName, Date: d}
		return nil
	})
	if err != nil {
		err = classify(err)
		logFailure("reserve", who, err)
		return Reservation{}, err
	}
	logger.LogInfo("reservation: appointment %d %s with %s on %s (%s)",
		res.AppointmentID, who, res.Caregiver, availability.Key(d), vaccineName)
	return res, nil
}

// UploadAvailability publishes the caregiver's slot on date. Publishing the
// same slot twice leaves a single slot.
func (e *Engine) UploadAvailability(ctx context.Context, who account.Identity, date string) (time.Time, error) {
	if err := requireCaregiver(who); err != nil {
		return time.Time{}, err
	}
	d, err := availability.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	err = e.Store.Atomically(ctx, func(l Ledgers) error {
		return l.Availability.Publish(ctx, who.Username(), d)
	})
	if err != nil {
		err = classify(err)
		logFailure("upload availability", who, err)
		return time.Time{}, err
	}
	logger.LogInfo("reservation: %s available on %s", who, availability.Key(d))
	return d, nil
}

// AddDoses adds count doses of vaccineName and returns the new stock.
func (e *Engine) AddDoses(ctx context.Context, who account.Identity, vaccineName string, count int) (int, error) {
	if err := requireCaregiver(who); err != nil {
		return 0, err
	}
	if err := vaccine.ValidateName(vaccineName); err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	var doses int
	err := e.Store.Atomically(ctx, func(l Ledgers) error {
		var err error
		doses, err = l.Inventory.AddDoses(ctx, vaccineName, count)
		return err
	})
	if err != nil {
		err = classify(err)
		logFailure("add doses", who, err)
		return 0, err
	}
	logger.LogInfo("reservation: %s added %d doses of %s (now %d)", who, count, vaccineName, doses)
	return doses, nil
}

// Cancel reverses a reservation: the appointment is removed, its slot is
// published again and its dose is returned, all in one transaction. Either
// party of the appointment may cancel it.
func (e *Engine) Cancel(ctx context.Context, who account.Identity, id int64) (appointment.Appointment, error) {
	if !who.Authenticated() {
		return appointment.Appointment{}, ErrNotAuthenticated
	}

	ctx, cancel := e.txContext(ctx)
	defer cancel()

	var a appointment.Appointment
	err := e.Store.Atomically(ctx, func(l Ledgers) error {
		var found bool
		var err error
		a, found, err = l.Appointments.Get(ctx, id)
		if err != nil {
			return err
		}
		if !found || !owns(who, a) {
			return fmt.Errorf("%w: %d", ErrAppointmentNotFound, id)
		}
		if err := l.Appointments.Remove(ctx, id); err != nil {
			return err
		}
		if err := l.Availability.Publish(ctx, a.Caregiver, a.Date); err != nil {
			return err
		}
		return l.Inventory.ReleaseDose(ctx, a.Vaccine)
	})
	if err != nil {
		err = classify(err)
		logFailure("cancel", who, err)
		return appointment.Appointment{}, err
	}
	logger.LogInfo("reservation: %s cancelled appointment %d", who, id)
	return a, nil
}

func owns(who account.Identity, a appointment.Appointment) bool {
	switch {
	case who.IsPatient():
		return a.Patient == who.Username()
	case who.IsCaregiver():
		return a.Caregiver == who.Username()
	}
	return false
}

func logFailure(op string, who account.Identity, err error) {
	if errors.Is(err, ErrPersistence) {
		logger.LogError("reservation: %s for %s rolled back: %v", op, who, err)
		return
	}
	logger.LogDebug("reservation: %s for %s rejected: %v", op, who, err)
}
