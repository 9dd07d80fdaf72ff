package reservation

import (
	"errors"
	"fmt"

	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/vaccine"
)

var (
	ErrInvalidDate          = availability.ErrInvalidDate
	ErrNoCaregiverAvailable = errors.New("no caregiver available")
	ErrInsufficientDoses    = errors.New("insufficient doses")
	ErrSlotNotFound         = availability.ErrSlotNotFound
	ErrInvalidCount         = vaccine.ErrInvalidCount
	ErrInvalidVaccine       = vaccine.ErrInvalidName
	ErrAppointmentNotFound  = appointment.ErrNotFound
	ErrPersistence          = errors.New("persistence failure")

	ErrNotAuthenticated = errors.New("not logged in")
	ErrPatientOnly      = errors.New("patient login required")
	ErrCaregiverOnly    = errors.New("caregiver login required")
)

// domainErrors pass through the engine untouched; anything else coming out
// of a store is reported as ErrPersistence.
var domainErrors = []error{
	ErrInvalidDate,
	ErrNoCaregiverAvailable,
	ErrInsufficientDoses,
	ErrSlotNotFound,
	ErrInvalidCount,
	ErrInvalidVaccine,
	ErrAppointmentNotFound,
	vaccine.ErrUnknownVaccine,
	vaccine.ErrOutOfStock,
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

var messages = []struct {
	err error
	msg string
}{
	{ErrNotAuthenticated, "Please login first."},
	{ErrPatientOnly, "Please login as a patient."},
	{ErrCaregiverOnly, "Please login as a caregiver first!"},
	{ErrInvalidDate, "Please try again! Enter a valid date in the format YYYY-MM-DD!"},
	{ErrNoCaregiverAvailable, "No caregiver is available!"},
	{ErrInsufficientDoses, "Not enough available doses!"},
	{ErrSlotNotFound, "That slot was just taken, please try again."},
	{ErrInvalidCount, "Please enter a non-negative number of doses."},
	{ErrInvalidVaccine, "Please enter a valid vaccine name."},
	{ErrAppointmentNotFound, "Appointment not found."},
	{ErrPersistence, "Please try again."},
}

// Messages renders one human-readable line per error kind found in err.
// A reservation that lacks both a caregiver and doses yields two lines.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	for _, m := range messages {
		if errors.Is(err, m.err) {
			out = append(out, m.msg)
		}
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
