package reservation_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/appointment"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/vaccine"
)

func TestSearchSchedule(t *testing.T) {
	e, _ := setup(t)
	mustAddDoses(t, e, "pfizer", 3)
	mustAddDoses(t, e, "moderna", 0)
	mustUpload(t, e, carol, "2024-06-01")
	mustUpload(t, e, bob, "2024-06-01")
	mustUpload(t, e, carol, "2024-06-02")

	s, err := e.SearchSchedule(context.Background(), alice, "2024-06-01")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(s.Caregivers, []string{"bob", "carol"}) {
		t.Errorf("caregivers: got %v", s.Caregivers)
	}
	want := []vaccine.Stock{{Name: "moderna", Doses: 0}, {Name: "pfizer", Doses: 3}}
	if !slices.Equal(s.Vaccines, want) {
		t.Errorf("vaccines: got %v, want %v", s.Vaccines, want)
	}

	if _, err := e.SearchSchedule(context.Background(), account.Identity{}, "2024-06-01"); !errors.Is(err, reservation.ErrNotAuthenticated) {
		t.Errorf("anonymous search: got %v", err)
	}
	if _, err := e.SearchSchedule(context.Background(), carol, "2024-6-1"); !errors.Is(err, reservation.ErrInvalidDate) {
		t.Errorf("bad date: got %v", err)
	}
}

func TestAppointmentsOrderedAndRestartable(t *testing.T) {
	e, _ := setup(t)
	mustAddDoses(t, e, "pfizer", 10)
	dates := []string{"2024-06-03", "2024-06-01", "2024-06-02"}
	for _, d := range dates {
		mustUpload(t, e, carol, d)
		if _, err := e.Reserve(context.Background(), alice, d, "pfizer"); err != nil {
			t.Fatalf("reserve %s: %v", d, err)
		}
	}
	mustUpload(t, e, bob, "2024-06-04")
	if _, err := e.Reserve(context.Background(), account.Patient("zoe"), "2024-06-04", "pfizer"); err != nil {
		t.Fatalf("reserve zoe: %v", err)
	}

	seq, err := e.Appointments(context.Background(), alice)
	if err != nil {
		t.Fatalf("appointments: %v", err)
	}
	ids := func() []int64 {
		var out []int64
		for a := range seq {
			out = append(out, a.ID)
		}
		return out
	}
	first := ids()
	if !slices.Equal(first, []int64{1, 2, 3}) {
		t.Errorf("patient ids: got %v", first)
	}
	if second := ids(); !slices.Equal(first, second) {
		t.Errorf("sequence not restartable: %v then %v", first, second)
	}

	cseq, err := e.Appointments(context.Background(), carol)
	if err != nil {
		t.Fatalf("caregiver appointments: %v", err)
	}
	got := slices.Collect(cseq)
	if len(got) != 3 {
		t.Fatalf("carol appointments: got %d", len(got))
	}
	for _, a := range got {
		if a.Caregiver != "carol" || a.Patient != "alice" {
			t.Errorf("unexpected appointment %+v", a)
		}
	}

	bseq, _ := e.Appointments(context.Background(), bob)
	if got := slices.Collect(bseq); len(got) != 1 || got[0] != (appointment.Appointment{ID: 4, Patient: "zoe", Caregiver: "bob", Vaccine: "pfizer", Date: got[0].Date}) {
		t.Errorf("bob appointments: %+v", got)
	}

	if _, err := e.Appointments(context.Background(), account.Identity{}); !errors.Is(err, reservation.ErrNotAuthenticated) {
		t.Errorf("anonymous: got %v", err)
	}
}

func TestMessages(t *testing.T) {
	if got := reservation.Messages(nil); got != nil {
		t.Errorf("nil error: %v", got)
	}
	got := reservation.Messages(reservation.ErrPatientOnly)
	if !slices.Equal(got, []string{"Please login as a patient."}) {
		t.Errorf("patient only: %v", got)
	}
	other := errors.New("boom")
	if got := reservation.Messages(other); !slices.Equal(got, []string{"boom"}) {
		t.Errorf("unknown error: %v", got)
	}
}
