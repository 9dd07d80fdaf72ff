package memstore

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/vaccine"
)

// --- vaccine.Inventory ---

func (t *tx) AddDoses(ctx context.Context, name string, count int) (int, error) {
	if err := t.begin(ctx, true); err != nil {
		return 0, err
	}
	prev, existed := t.s.stocks[name]
	next, err := vaccine.Add(prev, count)
	if err != nil {
		return prev, err
	}
	t.s.stocks[name] = next
	t.record("add doses "+name, func() {
		if existed {
			t.s.stocks[name] = prev
		} else {
			delete(t.s.stocks, name)
		}
	})
	return next, nil
}

func (t *tx) ReserveOneDose(ctx context.Context, name string) error {
	if err := t.begin(ctx, true); err != nil {
		return err
	}
	doses, ok := t.s.stocks[name]
	if !ok {
		return fmt.Errorf("%w: %s", vaccine.ErrUnknownVaccine, name)
	}
	if doses < 1 {
		return fmt.Errorf("%w: %s", vaccine.ErrOutOfStock, name)
	}
	t.s.stocks[name] = doses - 1
	t.record("reserve dose "+name, func() { t.s.stocks[name]++ })
	return nil
}

func (t *tx) ReleaseDose(ctx context.Context, name string) error {
	if err := t.begin(ctx, true); err != nil {
		return err
	}
	doses, ok := t.s.stocks[name]
	if !ok {
		return fmt.Errorf("%w: %s", vaccine.ErrUnknownVaccine, name)
	}
	t.s.stocks[name] = doses + 1
	t.record("release dose "+name, func() { t.s.stocks[name]-- })
	return nil
}

func (t *tx) Lookup(ctx context.Context, name string) (vaccine.Stock, bool, error) {
	if err := t.begin(ctx, false); err != nil {
		return vaccine.Stock{}, false, err
	}
	doses, ok := t.s.stocks[name]
	if !ok {
		return vaccine.Stock{}, false, nil
	}
	return vaccine.Stock{Name: name, Doses: doses}, true, nil
}

func (t *tx) List(ctx context.Context) ([]vaccine.Stock, error) {
	if err := t.begin(ctx, false); err != nil {
		return nil, err
	}
	out := make([]vaccine.Stock, 0, len(t.s.stocks))
	for name, doses := range t.s.stocks {
		out = append(out, vaccine.Stock{Name: name, Doses: doses})
	}
	slices.SortFunc(out, func(a, b vaccine.Stock) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// --- availability.Ledger ---

func (t *tx) Publish(ctx context.Context, caregiver string, date time.Time) error {
	if err := t.begin(ctx, true); err != nil {
		return err
	}
	key := availability.Key(date)
	day, ok := t.s.slots[key]
	if !ok {
		day = make(map[string]struct{})
		t.s.slots[key] = day
	}
	if _, dup := day[caregiver]; dup {
		return nil
	}
	day[caregiver] = struct{}{}
	t.record("publish "+caregiver+" "+key, func() { t.s.removeSlot(key, caregiver) })
	return nil
}

func (t *tx) PickCaregiver(ctx context.Context, date time.Time) (string, bool, error) {
	names, err := t.Caregivers(ctx, date)
	if err != nil || len(names) == 0 {
		return "", false, err
	}
	return names[0], true, nil
}

func (t *tx) Consume(ctx context.Context, caregiver string, date time.Time) error {
	if err := t.begin(ctx, true); err != nil {
		return err
	}
	key := availability.Key(date)
	if _, ok := t.s.slots[key][caregiver]; !ok {
		return fmt.Errorf("%w: %s on %s", availability.ErrSlotNotFound, caregiver, key)
	}
	t.s.removeSlot(key, caregiver)
	t.record("consume "+caregiver+" "+key, func() {
		day, ok := t.s.slots[key]
		if !ok {
			day = make(map[string]struct{})
			t.s.slots[key] = day
		}
		day[caregiver] = struct{}{}
	})
	return nil
}

func (t *tx) Caregivers(ctx context.Context, date time.Time) ([]string, error) {
	if err := t.begin(ctx, false); err != nil {
		return nil, err
	}
	day := t.s.slots[availability.Key(date)]
	out := make([]string, 0, len(day))
	for c := range day {
		out = append(out, c)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) removeSlot(key, caregiver string) {
	day := s.slots[key]
	delete(day, caregiver)
	if len(day) == 0 {
		delete(s.slots, key)
	}
}

// --- appointment.Ledger ---

func (t *tx) Record(ctx context.Context, a appointment.Appointment) (int64, error) {
	if err := t.begin(ctx, true); err != nil {
		return 0, err
	}
	// the counter is never rewound, so a rolled-back id stays unused
	t.s.nextID++
	a.ID = t.s.nextID
	t.s.appts[a.ID] = a
	t.record(fmt.Sprintf("record appointment %d", a.ID), func() { delete(t.s.appts, a.ID) })
	return a.ID, nil
}

func (t *tx) Get(ctx context.Context, id int64) (appointment.Appointment, bool, error) {
	if err := t.begin(ctx, false); err != nil {
		return appointment.Appointment{}, false, err
	}
	a, ok := t.s.appts[id]
	return a, ok, nil
}

func (t *tx) Remove(ctx context.Context, id int64) error {
	if err := t.begin(ctx, true); err != nil {
		return err
	}
	a, ok := t.s.appts[id]
	if !ok {
		return fmt.Errorf("%w: %d", appointment.ErrNotFound, id)
	}
	delete(t.s.appts, id)
	t.record(fmt.Sprintf("remove appointment %d", id), func() { t.s.appts[id] = a })
	return nil
}

func (t *tx) ListForCaregiver(ctx context.Context, caregiver string) (iter.Seq[appointment.Appointment], error) {
	return t.list(ctx, func(a appointment.Appointment) bool { return a.Caregiver == caregiver })
}

func (t *tx) ListForPatient(ctx context.Context, patient string) (iter.Seq[appointment.Appointment], error) {
	return t.list(ctx, func(a appointment.Appointment) bool { return a.Patient == patient })
}

func (t *tx) list(ctx context.Context, keep func(appointment.Appointment) bool) (iter.Seq[appointment.Appointment], error) {
	if err := t.begin(ctx, false); err != nil {
		return nil, err
	}
	var out []appointment.Appointment
	for _, a := range t.s.appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b appointment.Appointment) int { return cmp.Compare(a.ID, b.ID) })
	return slices.Values(out), nil
}
