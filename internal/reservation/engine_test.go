package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/memstore"
	"github.com/example/vaxsched/internal/reservation"
)

var (
	alice = account.Patient("alice")
	carol = account.Caregiver("carol")
	bob   = account.Caregiver("bob")
)

func setup(t *testing.T) (*reservation.Engine, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return reservation.NewEngine(st, time.Second), st
}

func mustAddDoses(t *testing.T, e *reservation.Engine, name string, n int) {
	t.Helper()
	if _, err := e.AddDoses(context.Background(), carol, name, n); err != nil {
		t.Fatalf("add doses: %v", err)
	}
}

func mustUpload(t *testing.T, e *reservation.Engine, who account.Identity, date string) {
	t.Helper()
	if _, err := e.UploadAvailability(context.Background(), who, date); err != nil {
		t.Fatalf("upload availability: %v", err)
	}
}

type snapshot struct {
	doses        int
	slots        []string
	appointments int
}

func take(t *testing.T, st reservation.Store, vaccineName, date string) snapshot {
	t.Helper()
	d, err := availability.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	var s snapshot
	err = st.View(context.Background(), func(l reservation.Ledgers) error {
		stock, _, err := l.Inventory.Lookup(context.Background(), vaccineName)
		if err != nil {
			return err
		}
		s.doses = stock.Doses
		if s.slots, err = l.Availability.Caregivers(context.Background(), d); err != nil {
			return err
		}
		seq, err := l.Appointments.ListForPatient(context.Background(), "alice")
		if err != nil {
			return err
		}
		for range seq {
			s.appointments++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return s
}

// ----- scenarios -----

func TestReserveScenarioA(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 5)
	mustUpload(t, e, carol, "2024-06-01")

	res, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.AppointmentID != 1 {
		t.Errorf("appointment id: got %d, want 1", res.AppointmentID)
	}
	if res.Caregiver != "carol" {
		t.Errorf("caregiver: got %q, want carol", res.Caregiver)
	}

	s := take(t, st, "pfizer", "2024-06-01")
	if s.doses != 4 {
		t.Errorf("doses: got %d, want 4", s.doses)
	}
	if len(s.slots) != 0 {
		t.Errorf("slot should be consumed, got %v", s.slots)
	}
	if s.appointments != 1 {
		t.Errorf("appointments: got %d, want 1", s.appointments)
	}
}

func TestReserveScenarioB_NoDoses(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 0)
	mustUpload(t, e, carol, "2024-06-01")

	_, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if !errors.Is(err, reservation.ErrInsufficientDoses) {
		t.Fatalf("expected ErrInsufficientDoses, got %v", err)
	}
	if errors.Is(err, reservation.ErrNoCaregiverAvailable) {
		t.Errorf("caregiver was available, got %v", err)
	}

	s := take(t, st, "pfizer", "2024-06-01")
	if s.appointments != 0 || !slices.Equal(s.slots, []string{"carol"}) || s.doses != 0 {
		t.Errorf("state changed: %+v", s)
	}
}

func TestReserveScenarioC_LexicographicCaregiver(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 5)
	mustUpload(t, e, carol, "2024-06-01")
	mustUpload(t, e, bob, "2024-06-01")

	res, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Caregiver != "bob" {
		t.Errorf("caregiver: got %q, want bob", res.Caregiver)
	}
	if s := take(t, st, "pfizer", "2024-06-01"); !slices.Equal(s.slots, []string{"carol"}) {
		t.Errorf("remaining slots: got %v, want [carol]", s.slots)
	}
}

func TestReserveScenarioD_NoCaregiver(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 5)
	mustUpload(t, e, carol, "2024-06-02")

	_, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if !errors.Is(err, reservation.ErrNoCaregiverAvailable) {
		t.Fatalf("expected ErrNoCaregiverAvailable, got %v", err)
	}
	s := take(t, st, "pfizer", "2024-06-01")
	if s.doses != 5 || s.appointments != 0 {
		t.Errorf("state changed: %+v", s)
	}
}

func TestReserveReportsBothFailures(t *testing.T) {
	e, _ := setup(t)

	_, err := e.Reserve(context.Background(), alice, "2024-06-01", "moderna")
	if !errors.Is(err, reservation.ErrNoCaregiverAvailable) || !errors.Is(err, reservation.ErrInsufficientDoses) {
		t.Fatalf("expected both errors, got %v", err)
	}
	msgs := reservation.Messages(err)
	want := []string{"No caregiver is available!", "Not enough available doses!"}
	if !slices.Equal(msgs, want) {
		t.Errorf("messages: got %q, want %q", msgs, want)
	}
}

func TestReserveValidation(t *testing.T) {
	e, _ := setup(t)
	tests := []struct {
		name string
		who  account.Identity
		date string
		want error
	}{
		{"anonymous", account.Identity{}, "2024-06-01", reservation.ErrNotAuthenticated},
		{"caregiver", carol, "2024-06-01", reservation.ErrPatientOnly},
		{"bad date", alice, "2024-13-01", reservation.ErrInvalidDate},
		{"wrong format", alice, "06/01/2024", reservation.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Reserve(context.Background(), tt.who, tt.date, "pfizer")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// ----- invariants -----

func TestLedgerDeltaInvariant(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 3)
	for _, c := range []account.Identity{carol, bob, account.Caregiver("dave")} {
		mustUpload(t, e, c, "2024-06-01")
	}

	before := take(t, st, "pfizer", "2024-06-01")
	for i := 0; i < 2; i++ {
		if _, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer"); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	after := take(t, st, "pfizer", "2024-06-01")

	if before.doses-after.doses != 2 {
		t.Errorf("dose delta: got %d, want 2", before.doses-after.doses)
	}
	if len(before.slots)-len(after.slots) != 2 {
		t.Errorf("slot delta: got %d, want 2", len(before.slots)-len(after.slots))
	}
	if after.appointments-before.appointments != 2 {
		t.Errorf("appointment delta: got %d, want 2", after.appointments-before.appointments)
	}
}

func TestUploadAvailabilityIdempotent(t *testing.T) {
	e, st := setup(t)
	mustUpload(t, e, carol, "2024-06-01")
	once := take(t, st, "pfizer", "2024-06-01")
	mustUpload(t, e, carol, "2024-06-01")
	twice := take(t, st, "pfizer", "2024-06-01")

	if !slices.Equal(once.slots, twice.slots) || len(twice.slots) != 1 {
		t.Errorf("re-publish changed state: %v vs %v", once.slots, twice.slots)
	}
}

func TestUploadAvailabilityValidation(t *testing.T) {
	e, _ := setup(t)
	if _, err := e.UploadAvailability(context.Background(), alice, "2024-06-01"); !errors.Is(err, reservation.ErrCaregiverOnly) {
		t.Errorf("patient upload: got %v", err)
	}
	if _, err := e.UploadAvailability(context.Background(), carol, "June 1"); !errors.Is(err, reservation.ErrInvalidDate) {
		t.Errorf("bad date: got %v", err)
	}
}

func TestAddDoses(t *testing.T) {
	e, _ := setup(t)
	ctx := context.Background()

	n, err := e.AddDoses(ctx, carol, "pfizer", 5)
	if err != nil || n != 5 {
		t.Fatalf("first add: %d, %v", n, err)
	}
	n, err = e.AddDoses(ctx, carol, "pfizer", 2)
	if err != nil || n != 7 {
		t.Fatalf("second add: %d, %v", n, err)
	}
	if _, err := e.AddDoses(ctx, carol, "pfizer", -1); !errors.Is(err, reservation.ErrInvalidCount) {
		t.Errorf("negative count: got %v", err)
	}
	if _, err := e.AddDoses(ctx, alice, "pfizer", 1); !errors.Is(err, reservation.ErrCaregiverOnly) {
		t.Errorf("patient add: got %v", err)
	}
	if _, err := e.AddDoses(ctx, carol, "", 1); !errors.Is(err, reservation.ErrInvalidVaccine) {
		t.Errorf("empty name: got %v", err)
	}

	s, ok, err := e.Stock(ctx, "pfizer")
	if err != nil || !ok || s.Doses != 7 {
		t.Errorf("stock: %+v %v %v", s, ok, err)
	}
}

func TestDosesNeverNegative(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 2)
	for i := 0; i < 5; i++ {
		mustUpload(t, e, account.Caregiver(fmt.Sprintf("cg%d", i)), "2024-06-01")
	}
	for i := 0; i < 5; i++ {
		_, _ = e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	}
	s := take(t, st, "pfizer", "2024-06-01")
	if s.doses != 0 {
		t.Errorf("doses: got %d, want 0", s.doses)
	}
	if s.appointments != 2 || len(s.slots) != 3 {
		t.Errorf("state: %+v", s)
	}
}

// ----- concurrency -----

func TestConcurrentReserveLastDose(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 1)
	mustUpload(t, e, carol, "2024-06-01")

	const n = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Reserve(context.Background(), account.Patient(fmt.Sprintf("p%02d", i)), "2024-06-01", "pfizer")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes: got %d, want 1", successes)
	}
	for _, err := range failures {
		if !errors.Is(err, reservation.ErrInsufficientDoses) && !errors.Is(err, reservation.ErrNoCaregiverAvailable) {
			t.Errorf("unexpected failure: %v", err)
		}
	}
	if s := take(t, st, "pfizer", "2024-06-01"); s.doses != 0 || len(s.slots) != 0 {
		t.Errorf("state: %+v", s)
	}
}

func TestConcurrentReserveDistinctCaregivers(t *testing.T) {
	e, _ := setup(t)
	mustAddDoses(t, e, "pfizer", 100)
	const caregivers = 10
	for i := 0; i < caregivers; i++ {
		mustUpload(t, e, account.Caregiver(fmt.Sprintf("cg%02d", i)), "2024-06-01")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Reserve(context.Background(), account.Patient(fmt.Sprintf("p%02d", i)), "2024-06-01", "pfizer")
			if err != nil {
				return
			}
			mu.Lock()
			seen[res.Caregiver]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(seen) != caregivers {
		t.Errorf("booked caregivers: got %d, want %d", len(seen), caregivers)
	}
	for c, n := range seen {
		if n != 1 {
			t.Errorf("caregiver %s double-booked %d times", c, n)
		}
	}
}

// ----- rollback -----

var errDisk = errors.New("disk on fire")

type failingAppointments struct {
	appointment.Ledger
}

func (failingAppointments) Record(context.Context, appointment.Appointment) (int64, error) {
	return 0, errDisk
}

// faultyStore breaks the last step of a reservation.
type faultyStore struct {
	reservation.Store
}

func (f faultyStore) Atomically(ctx context.Context, fn func(reservation.Ledgers) error) error {
	return f.Store.Atomically(ctx, func(l reservation.Ledgers) error {
		l.Appointments = failingAppointments{l.Appointments}
		return fn(l)
	})
}

func TestReserveRollsBackOnPersistenceFailure(t *testing.T) {
	st := memstore.New()
	good := reservation.NewEngine(st, time.Second)
	mustAddDoses(t, good, "pfizer", 1)
	mustUpload(t, good, carol, "2024-06-01")

	bad := reservation.NewEngine(faultyStore{st}, time.Second)
	_, err := bad.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if !errors.Is(err, reservation.ErrPersistence) || !errors.Is(err, errDisk) {
		t.Fatalf("expected wrapped persistence failure, got %v", err)
	}

	s := take(t, st, "pfizer", "2024-06-01")
	if s.doses != 1 || !slices.Equal(s.slots, []string{"carol"}) || s.appointments != 0 {
		t.Errorf("partial reservation visible: %+v", s)
	}

	// the same state still books through a healthy engine
	if _, err := good.Reserve(context.Background(), alice, "2024-06-01", "pfizer"); err != nil {
		t.Fatalf("reserve after rollback: %v", err)
	}
}

// ----- cancel -----

func TestCancelRestoresSlotAndDose(t *testing.T) {
	e, st := setup(t)
	mustAddDoses(t, e, "pfizer", 1)
	mustUpload(t, e, carol, "2024-06-01")
	res, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := e.Cancel(context.Background(), account.Patient("mallory"), res.AppointmentID); !errors.Is(err, reservation.ErrAppointmentNotFound) {
		t.Errorf("stranger cancel: got %v", err)
	}
	if _, err := e.Cancel(context.Background(), bob, res.AppointmentID); !errors.Is(err, reservation.ErrAppointmentNotFound) {
		t.Errorf("other caregiver cancel: got %v", err)
	}

	a, err := e.Cancel(context.Background(), alice, res.AppointmentID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.Caregiver != "carol" || a.Vaccine != "pfizer" {
		t.Errorf("cancelled appointment: %+v", a)
	}
	s := take(t, st, "pfizer", "2024-06-01")
	if s.doses != 1 || !slices.Equal(s.slots, []string{"carol"}) || s.appointments != 0 {
		t.Errorf("state after cancel: %+v", s)
	}

	if _, err := e.Cancel(context.Background(), alice, res.AppointmentID); !errors.Is(err, reservation.ErrAppointmentNotFound) {
		t.Errorf("double cancel: got %v", err)
	}

	// ids are never reused
	res2, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if res2.AppointmentID <= res.AppointmentID {
		t.Errorf("id reused: %d after %d", res2.AppointmentID, res.AppointmentID)
	}
}

func TestCancelByCaregiver(t *testing.T) {
	e, _ := setup(t)
	mustAddDoses(t, e, "pfizer", 1)
	mustUpload(t, e, carol, "2024-06-01")
	res, err := e.Reserve(context.Background(), alice, "2024-06-01", "pfizer")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := e.Cancel(context.Background(), carol, res.AppointmentID); err != nil {
		t.Fatalf("caregiver cancel: %v", err)
	}
}
