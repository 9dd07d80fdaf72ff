package appointment

import (
	"context"
	"errors"
	"iter"
	"time"
)

var ErrNotFound = errors.New("appointment not found")

// Appointment is a committed reservation. It has no update path.
type Appointment struct {
	ID        int64
	Patient   string
	Caregiver string
	Vaccine   string
	Date      time.Time
}

// Ledger stores appointments. Ids are strictly increasing and never reused;
// gaps are allowed.
type Ledger interface {
	// Record assigns the next id to a (ignoring a.ID) and stores it.
	Record(ctx context.Context, a Appointment) (int64, error)
	Get(ctx context.Context, id int64) (Appointment, bool, error)
	Remove(ctx context.Context, id int64) error
	// ListForCaregiver and ListForPatient return sequences ordered by id.
	// The sequence is a snapshot and may be ranged over more than once.
	ListForCaregiver(ctx context.Context, caregiver string) (iter.Seq[Appointment], error)
	ListForPatient(ctx context.Context, patient string) (iter.Seq[Appointment], error)
}
