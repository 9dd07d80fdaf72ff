package postgres

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/db"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/vaccine"
)

// ledgers implements the three ledgers on one pgx transaction. lock is false
// inside read-only transactions, where row locks are not allowed.
type ledgers struct {
	tx   pgx.Tx
	lock bool
}

func newLedgers(tx pgx.Tx, lock bool) reservation.Ledgers {
	l := &ledgers{tx: tx, lock: lock}
	return reservation.Ledgers{Inventory: l, Availability: l, Appointments: l}
}

func (l *ledgers) forUpdate(q string) string {
	if l.lock {
		return q + " FOR UPDATE"
	}
	return q
}

// --- vaccine.Inventory ---

func (l *ledgers) AddDoses(ctx context.Context, name string, count int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: %d", vaccine.ErrInvalidCount, count)
	}
	var doses int
	err := l.tx.QueryRow(ctx, `
		INSERT INTO vaccines (name, doses) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET doses = vaccines.doses + EXCLUDED.doses
		RETURNING doses
	`, name, count).Scan(&doses)
	if err != nil {
		if db.IsOutOfRange(err) {
			return 0, fmt.Errorf("%w: %s + %d", vaccine.ErrInvalidCount, name, count)
		}
		return 0, err
	}
	return doses, nil
}

func (l *ledgers) ReserveOneDose(ctx context.Context, name string) error {
	tag, err := l.tx.Exec(ctx, `UPDATE vaccines SET doses = doses - 1 WHERE name=$1 AND doses > 0`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	_, ok, err := l.Lookup(ctx, name)
	switch {
	case err != nil:
		return err
	case !ok:
		return fmt.Errorf("%w: %s", vaccine.ErrUnknownVaccine, name)
	default:
		return fmt.Errorf("%w: %s", vaccine.ErrOutOfStock, name)
	}
}

func (l *ledgers) ReleaseDose(ctx context.Context, name string) error {
	tag, err := l.tx.Exec(ctx, `UPDATE vaccines SET doses = doses + 1 WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", vaccine.ErrUnknownVaccine, name)
	}
	return nil
}

func (l *ledgers) Lookup(ctx context.Context, name string) (vaccine.Stock, bool, error) {
	s := vaccine.Stock{Name: name}
	err := l.tx.QueryRow(ctx, l.forUpdate(`SELECT doses FROM vaccines WHERE name=$1`), name).Scan(&s.Doses)
	if db.IsNotFound(err) {
		return vaccine.Stock{}, false, nil
	}
	if err != nil {
		return vaccine.Stock{}, false, err
	}
	return s, true, nil
}

func (l *ledgers) List(ctx context.Context) ([]vaccine.Stock, error) {
	rows, err := l.tx.Query(ctx, `SELECT name, doses FROM vaccines ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[vaccine.Stock])
}

// --- availability.Ledger ---

func (l *ledgers) Publish(ctx context.Context, caregiver string, date time.Time) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO availabilities (slot_date, caregiver) VALUES ($1, $2)
		ON CONFLICT (slot_date, caregiver) DO NOTHING
	`, availability.Day(date), caregiver)
	return err
}

func (l *ledgers) PickCaregiver(ctx context.Context, date time.Time) (string, bool, error) {
	q := `SELECT caregiver FROM availabilities WHERE slot_date=$1 ORDER BY caregiver LIMIT 1`
	if l.lock {
		// a slot another reservation holds is skipped, not waited on
		q += " FOR UPDATE SKIP LOCKED"
	}
	var caregiver string
	err := l.tx.QueryRow(ctx, q, availability.Day(date)).Scan(&caregiver)
	if db.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return caregiver, true, nil
}

func (l *ledgers) Consume(ctx context.Context, caregiver string, date time.Time) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM availabilities WHERE slot_date=$1 AND caregiver=$2`, availability.Day(date), caregiver)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s on %s", availability.ErrSlotNotFound, caregiver, availability.Key(date))
	}
	return nil
}

func (l *ledgers) Caregivers(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := l.tx.Query(ctx, `SELECT caregiver FROM availabilities WHERE slot_date=$1 ORDER BY caregiver`, availability.Day(date))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// --- appointment.Ledger ---

const appointmentColumns = `id, patient, caregiver, vaccine, slot_date`

func (l *ledgers) Record(ctx context.Context, a appointment.Appointment) (int64, error) {
	var id int64
	err := l.tx.QueryRow(ctx, `
		INSERT INTO appointments (patient, caregiver, vaccine, slot_date) VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.Patient, a.Caregiver, a.Vaccine, availability.Day(a.Date)).Scan(&id)
	return id, err
}

func (l *ledgers) Get(ctx context.Context, id int64) (appointment.Appointment, bool, error) {
	rows, err := l.tx.Query(ctx, l.forUpdate(`SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`), id)
	if err != nil {
		return appointment.Appointment{}, false, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
	if db.IsNotFound(err) {
		return appointment.Appointment{}, false, nil
	}
	if err != nil {
		return appointment.Appointment{}, false, err
	}
	return a, true, nil
}

func (l *ledgers) Remove(ctx context.Context, id int64) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", appointment.ErrNotFound, id)
	}
	return nil
}

func (l *ledgers) ListForCaregiver(ctx context.Context, caregiver string) (iter.Seq[appointment.Appointment], error) {
	return l.list(ctx, `caregiver`, caregiver)
}

func (l *ledgers) ListForPatient(ctx context.Context, patient string) (iter.Seq[appointment.Appointment], error) {
	return l.list(ctx, `patient`, patient)
}

// list materializes the rows before the transaction ends.
func (l *ledgers) list(ctx context.Context, column, username string) (iter.Seq[appointment.Appointment], error) {
	rows, err := l.tx.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE `+column+`=$1 ORDER BY id`, username)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanAppointment)
	if err != nil {
		return nil, err
	}
	return slices.Values(out), nil
}

func scanAppointment(row pgx.CollectableRow) (appointment.Appointment, error) {
	var a appointment.Appointment
	err := row.Scan(&a.ID, &a.Patient, &a.Caregiver, &a.Vaccine, &a.Date)
	a.Date = availability.Day(a.Date)
	return a, err
}
