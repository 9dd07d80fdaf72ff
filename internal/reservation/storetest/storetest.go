// Package storetest holds the behaviour every reservation.Store backend has
// to share. Backends call Run from their own tests with a constructor that
// returns an empty store.
package storetest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/vaccine"
)

// Backend is a store holding both the ledgers and the accounts.
type Backend interface {
	reservation.Store
	account.Store
}

var errAbort = errors.New("abort")

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := availability.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func atomically(t *testing.T, st reservation.Store, fn func(context.Context, reservation.Ledgers) error) {
	t.Helper()
	ctx := context.Background()
	if err := st.Atomically(ctx, func(l reservation.Ledgers) error { return fn(ctx, l) }); err != nil {
		t.Fatalf("atomically: %v", err)
	}
}

func view(t *testing.T, st reservation.Store, fn func(context.Context, reservation.Ledgers) error) {
	t.Helper()
	ctx := context.Background()
	if err := st.View(ctx, func(l reservation.Ledgers) error { return fn(ctx, l) }); err != nil {
		t.Fatalf("view: %v", err)
	}
}

// Run exercises open() as a ledger store. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("Inventory", func(t *testing.T) { testInventory(t, open(t)) })
	t.Run("Availability", func(t *testing.T) { testAvailability(t, open(t)) })
	t.Run("Appointments", func(t *testing.T) { testAppointments(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ConcurrentReserve", func(t *testing.T) { testConcurrentReserve(t, open(t)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, open(t)) })
}

func testInventory(t *testing.T, st Backend) {
	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		if n, err := l.Inventory.AddDoses(ctx, "pfizer", 2); err != nil || n != 2 {
			t.Errorf("add: %d %v", n, err)
		}
		if n, err := l.Inventory.AddDoses(ctx, "pfizer", 3); err != nil || n != 5 {
			t.Errorf("add again: %d %v", n, err)
		}
		if _, err := l.Inventory.AddDoses(ctx, "moderna", 0); err != nil {
			t.Errorf("add zero: %v", err)
		}
		return nil
	})

	ctx := context.Background()
	err := st.Atomically(ctx, func(l reservation.Ledgers) error {
		_, err := l.Inventory.AddDoses(ctx, "pfizer", -1)
		return err
	})
	if !errors.Is(err, vaccine.ErrInvalidCount) {
		t.Errorf("negative add: %v", err)
	}

	err = st.Atomically(ctx, func(l reservation.Ledgers) error {
		return l.Inventory.ReserveOneDose(ctx, "moderna")
	})
	if !errors.Is(err, vaccine.ErrOutOfStock) {
		t.Errorf("reserve from empty stock: %v", err)
	}
	err = st.Atomically(ctx, func(l reservation.Ledgers) error {
		return l.Inventory.ReserveOneDose(ctx, "novavax")
	})
	if !errors.Is(err, vaccine.ErrUnknownVaccine) {
		t.Errorf("reserve unknown: %v", err)
	}
	err = st.Atomically(ctx, func(l reservation.Ledgers) error {
		return l.Inventory.ReleaseDose(ctx, "novavax")
	})
	if !errors.Is(err, vaccine.ErrUnknownVaccine) {
		t.Errorf("release unknown: %v", err)
	}

	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		if err := l.Inventory.ReserveOneDose(ctx, "pfizer"); err != nil {
			return err
		}
		return l.Inventory.ReleaseDose(ctx, "moderna")
	})

	view(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		got, err := l.Inventory.List(ctx)
		if err != nil {
			return err
		}
		want := []vaccine.Stock{{Name: "moderna", Doses: 1}, {Name: "pfizer", Doses: 4}}
		if !slices.Equal(got, want) {
			t.Errorf("list: got %v want %v", got, want)
		}
		if _, ok, err := l.Inventory.Lookup(ctx, "novavax"); err != nil || ok {
			t.Errorf("lookup unknown: %v %v", ok, err)
		}
		return nil
	})
}

func testAvailability(t *testing.T, st Backend) {
	d := day(t, "2021-06-01")
	other := day(t, "2021-06-02")

	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		for _, c := range []string{"dave", "bob", "carol", "bob"} {
			if err := l.Availability.Publish(ctx, c, d); err != nil {
				return err
			}
		}
		return l.Availability.Publish(ctx, "alan", other)
	})

	view(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		got, err := l.Availability.Caregivers(ctx, d)
		if err != nil {
			return err
		}
		if want := []string{"bob", "carol", "dave"}; !slices.Equal(got, want) {
			t.Errorf("caregivers: got %v want %v", got, want)
		}
		c, ok, err := l.Availability.PickCaregiver(ctx, d)
		if err != nil || !ok || c != "bob" {
			t.Errorf("pick: %q %v %v", c, ok, err)
		}
		if _, ok, err := l.Availability.PickCaregiver(ctx, day(t, "2021-07-01")); err != nil || ok {
			t.Errorf("pick on empty day: %v %v", ok, err)
		}
		return nil
	})

	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		return l.Availability.Consume(ctx, "bob", d)
	})
	ctx := context.Background()
	err := st.Atomically(ctx, func(l reservation.Ledgers) error {
		return l.Availability.Consume(ctx, "bob", d)
	})
	if !errors.Is(err, availability.ErrSlotNotFound) {
		t.Errorf("consume twice: %v", err)
	}

	view(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		c, _, err := l.Availability.PickCaregiver(ctx, d)
		if err != nil {
			return err
		}
		if c != "carol" {
			t.Errorf("pick after consume: %q", c)
		}
		return nil
	})
}

func testAppointments(t *testing.T, st Backend) {
	d := day(t, "2021-06-01")
	var ids []int64
	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		for _, a := range []appointment.Appointment{
			{Patient: "alice", Caregiver: "carol", Vaccine: "pfizer", Date: d},
			{Patient: "zed", Caregiver: "carol", Vaccine: "moderna", Date: d},
			{Patient: "alice", Caregiver: "bob", Vaccine: "pfizer", Date: day(t, "2021-06-03")},
		} {
			id, err := l.Appointments.Record(ctx, a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if !slices.IsSorted(ids) || ids[0] == ids[1] || ids[1] == ids[2] {
		t.Fatalf("ids not strictly increasing: %v", ids)
	}

	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		return l.Appointments.Remove(ctx, ids[2])
	})
	var next int64
	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		var err error
		next, err = l.Appointments.Record(ctx, appointment.Appointment{Patient: "alice", Caregiver: "bob", Vaccine: "pfizer", Date: d})
		return err
	})
	if next <= ids[2] {
		t.Errorf("id %d reused or reordered after %v", next, ids)
	}

	view(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		a, ok, err := l.Appointments.Get(ctx, ids[0])
		if err != nil || !ok {
			t.Fatalf("get: %v %v", ok, err)
		}
		want := appointment.Appointment{ID: ids[0], Patient: "alice", Caregiver: "carol", Vaccine: "pfizer", Date: d}
		if a != want {
			t.Errorf("get: got %+v want %+v", a, want)
		}
		if _, ok, err := l.Appointments.Get(ctx, ids[2]); err != nil || ok {
			t.Errorf("get removed: %v %v", ok, err)
		}

		seq, err := l.Appointments.ListForPatient(ctx, "alice")
		if err != nil {
			return err
		}
		var got []int64
		for a := range seq {
			got = append(got, a.ID)
		}
		if want := []int64{ids[0], next}; !slices.Equal(got, want) {
			t.Errorf("patient list: got %v want %v", got, want)
		}

		seq, err = l.Appointments.ListForCaregiver(ctx, "carol")
		if err != nil {
			return err
		}
		got = got[:0]
		for a := range seq {
			got = append(got, a.ID)
		}
		if want := []int64{ids[0], ids[1]}; !slices.Equal(got, want) {
			t.Errorf("caregiver list: got %v want %v", got, want)
		}
		return nil
	})

	ctx := context.Background()
	err := st.Atomically(ctx, func(l reservation.Ledgers) error {
		return l.Appointments.Remove(ctx, ids[2])
	})
	if !errors.Is(err, appointment.ErrNotFound) {
		t.Errorf("remove twice: %v", err)
	}
}

func testRollback(t *testing.T, st Backend) {
	d := day(t, "2021-06-01")
	atomically(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		if _, err := l.Inventory.AddDoses(ctx, "pfizer", 1); err != nil {
			return err
		}
		return l.Availability.Publish(ctx, "carol", d)
	})

	ctx := context.Background()
	err := st.Atomically(ctx, func(l reservation.Ledgers) error {
		if err := l.Inventory.ReserveOneDose(ctx, "pfizer"); err != nil {
			return err
		}
		if err := l.Availability.Consume(ctx, "carol", d); err != nil {
			return err
		}
		if _, err := l.Inventory.AddDoses(ctx, "moderna", 7); err != nil {
			return err
		}
		if _, err := l.Appointments.Record(ctx, appointment.Appointment{Patient: "alice", Caregiver: "carol", Vaccine: "pfizer", Date: d}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort, got %v", err)
	}

	view(t, st, func(ctx context.Context, l reservation.Ledgers) error {
		stocks, err := l.Inventory.List(ctx)
		if err != nil {
			return err
		}
		if want := []vaccine.Stock{{Name: "pfizer", Doses: 1}}; !slices.Equal(stocks, want) {
			t.Errorf("stock after rollback: %v", stocks)
		}
		cs, err := l.Availability.Caregivers(ctx, d)
		if err != nil {
			return err
		}
		if !slices.Equal(cs, []string{"carol"}) {
			t.Errorf("slots after rollback: %v", cs)
		}
		seq, err := l.Appointments.ListForPatient(ctx, "alice")
		if err != nil {
			return err
		}
		for a := range seq {
			t.Errorf("appointment survived rollback: %+v", a)
		}
		return nil
	})
}

func testConcurrentReserve(t *testing.T, st Backend) {
	e := reservation.NewEngine(st, 10*time.Second)
	ctx := context.Background()
	for _, c := range []string{"bob", "carol", "dave"} {
		if _, err := e.UploadAvailability(ctx, account.Caregiver(c), "2021-06-01"); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	if _, err := e.AddDoses(ctx, account.Caregiver("carol"), "pfizer", 2); err != nil {
		t.Fatalf("add doses: %v", err)
	}

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		booked   []string
		rejected int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			who := account.Patient(string(rune('a' + i)))
			res, err := e.Reserve(ctx, who, "2021-06-01", "pfizer")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked = append(booked, res.Caregiver)
			case errors.Is(err, reservation.ErrInsufficientDoses),
				errors.Is(err, reservation.ErrNoCaregiverAvailable),
				errors.Is(err, reservation.ErrSlotNotFound):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(booked) != 2 || rejected != n-2 {
		t.Fatalf("booked %v, rejected %d", booked, rejected)
	}
	if booked[0] == booked[1] {
		t.Errorf("caregiver double-booked: %v", booked)
	}
	stock, ok, err := e.Stock(ctx, "pfizer")
	if err != nil || !ok {
		t.Fatalf("stock: %v %v", ok, err)
	}
	if stock.Doses != 0 {
		t.Errorf("doses left: %d", stock.Doses)
	}
}

func testAccounts(t *testing.T, st Backend) {
	ctx := context.Background()
	created := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	a := account.Account{Username: "alice", Role: account.RolePatient, PasswordHash: []byte("hash"), CreatedAt: created}
	if err := st.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.CreateAccount(ctx, a); !errors.Is(err, account.ErrUsernameTaken) {
		t.Errorf("duplicate: %v", err)
	}
	// patients and caregivers are separate namespaces
	cg := a
	cg.Role = account.RoleCaregiver
	if err := st.CreateAccount(ctx, cg); err != nil {
		t.Errorf("same name as caregiver: %v", err)
	}

	got, err := st.GetAccount(ctx, account.RolePatient, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" || got.Role != account.RolePatient || string(got.PasswordHash) != "hash" || !got.CreatedAt.Equal(created) {
		t.Errorf("get: %+v", got)
	}
	if _, err := st.GetAccount(ctx, account.RolePatient, "nobody"); !errors.Is(err, account.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}
