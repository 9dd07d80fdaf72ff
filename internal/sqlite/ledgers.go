package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/vaccine"
)

var errReadOnly = errors.New("sqlite: write in read-only transaction")

type ledgers struct {
	tx       *sql.Tx
	writable bool
}

func newLedgers(tx *sql.Tx, writable bool) reservation.Ledgers {
	l := &ledgers{tx: tx, writable: writable}
	return reservation.Ledgers{Inventory: l, Availability: l, Appointments: l}
}

func (l *ledgers) exec(ctx context.Context, q string, args ...any) (int64, error) {
	if !l.writable {
		return 0, errReadOnly
	}
	res, err := l.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- vaccine.Inventory ---

func (l *ledgers) AddDoses(ctx context.Context, name string, count int) (int, error) {
	cur, _, err := l.Lookup(ctx, name)
	if err != nil {
		return 0, err
	}
	next, err := vaccine.Add(cur.Doses, count)
	if err != nil {
		return cur.Doses, err
	}
	_, err = l.exec(ctx, `
		INSERT INTO vaccines (name, doses) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET doses = excluded.doses
	`, name, next)
	if err != nil {
		return cur.Doses, err
	}
	return next, nil
}

func (l *ledgers) ReserveOneDose(ctx context.Context, name string) error {
	n, err := l.exec(ctx, `UPDATE vaccines SET doses = doses - 1 WHERE name = ? AND doses > 0`, name)
	if err != nil {
		return err
	}
	if n == 1 {
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
	n, err := l.exec(ctx, `UPDATE vaccines SET doses = doses + 1 WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", vaccine.ErrUnknownVaccine, name)
	}
	return nil
}

func (l *ledgers) Lookup(ctx context.Context, name string) (vaccine.Stock, bool, error) {
	s := vaccine.Stock{Name: name}
	err := l.tx.QueryRowContext(ctx, `SELECT doses FROM vaccines WHERE name = ?`, name).Scan(&s.Doses)
	if errors.Is(err, sql.ErrNoRows) {
		return vaccine.Stock{}, false, nil
	}
	if err != nil {
		return vaccine.Stock{}, false, err
	}
	return s, true, nil
}

func (l *ledgers) List(ctx context.Context) ([]vaccine.Stock, error) {
	rows, err := l.tx.QueryContext(ctx, `SELECT name, doses FROM vaccines ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vaccine.Stock
	for rows.Next() {
		var s vaccine.Stock
		if err := rows.Scan(&s.Name, &s.Doses); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- availability.Ledger ---

func (l *ledgers) Publish(ctx context.Context, caregiver string, date time.Time) error {
	_, err := l.exec(ctx, `
		INSERT INTO availabilities (slot_date, caregiver) VALUES (?, ?)
		ON CONFLICT (slot_date, caregiver) DO NOTHING
	`, availability.Key(date), caregiver)
	return err
}

func (l *ledgers) PickCaregiver(ctx context.Context, date time.Time) (string, bool, error) {
	var caregiver string
	err := l.tx.QueryRowContext(ctx,
		`SELECT caregiver FROM availabilities WHERE slot_date = ? ORDER BY caregiver LIMIT 1`,
		availability.Key(date),
	).Scan(&caregiver)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return caregiver, true, nil
}

func (l *ledgers) Consume(ctx context.Context, caregiver string, date time.Time) error {
	key := availability.Key(date)
	n, err := l.exec(ctx, `DELETE FROM availabilities WHERE slot_date = ? AND caregiver = ?`, key, caregiver)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s on %s", availability.ErrSlotNotFound, caregiver, key)
	}
	return nil
}

func (l *ledgers) Caregivers(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := l.tx.QueryContext(ctx,
		`SELECT caregiver FROM availabilities WHERE slot_date = ? ORDER BY caregiver`,
		availability.Key(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- appointment.Ledger ---

const appointmentColumns = `id, patient, caregiver, vaccine, slot_date`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (appointment.Appointment, error) {
	var (
		a    appointment.Appointment
		date string
	)
	if err := row.Scan(&a.ID, &a.Patient, &a.Caregiver, &a.Vaccine, &date); err != nil {
		return appointment.Appointment{}, err
	}
	d, err := availability.ParseDate(date)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("sqlite: appointment %d: %w", a.ID, err)
	}
	a.Date = d
	return a, nil
}

func (l *ledgers) Record(ctx context.Context, a appointment.Appointment) (int64, error) {
	if !l.writable {
		return 0, errReadOnly
	}
	res, err := l.tx.ExecContext(ctx,
		`INSERT INTO appointments (patient, caregiver, vaccine, slot_date) VALUES (?, ?, ?, ?)`,
		a.Patient, a.Caregiver, a.Vaccine, availability.Key(a.Date),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (l *ledgers) Get(ctx context.Context, id int64) (appointment.Appointment, bool, error) {
	row := l.tx.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return appointment.Appointment{}, false, nil
	}
	if err != nil {
		return appointment.Appointment{}, false, err
	}
	return a, true, nil
}

func (l *ledgers) Remove(ctx context.Context, id int64) error {
	n, err := l.exec(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
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

func (l *ledgers) list(ctx context.Context, column, username string) (iter.Seq[appointment.Appointment], error) {
	rows, err := l.tx.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE `+column+` = ? ORDER BY id`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []appointment.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slices.Values(out), nil
}
