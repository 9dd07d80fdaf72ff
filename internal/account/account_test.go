package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/memstore"
)

const goodPassword = "Passw0rd!"

func newService(perMinute float64, burst int) *account.Service {
	return account.NewService(memstore.New(), account.NewThrottle(perMinute, burst))
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		pw   string
		want bool
	}{
		{goodPassword, true},
		{"Abcdefg1?", true},
		{"Ab1!", false},
		{"abcdefg1!", false},
		{"ABCDEFG1!", false},
		{"Abcdefgh!", false},
		{"Abcdefgh1", false},
		{"Abcdefg1$", false},
	}
	for _, tt := range tests {
		if got := account.StrongPassword(tt.pw); got != tt.want {
			t.Errorf("StrongPassword(%q) = %v, want %v", tt.pw, got, tt.want)
		}
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newService(0, 1)
	ctx := context.Background()

	id, err := svc.Register(ctx, account.RolePatient, "alice", goodPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !id.IsPatient() || id.Username() != "alice" {
		t.Errorf("identity: %v", id)
	}

	got, err := svc.Authenticate(ctx, account.RolePatient, "alice", goodPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got != id {
		t.Errorf("login identity: got %v, want %v", got, id)
	}

	if _, err := svc.Authenticate(ctx, account.RolePatient, "alice", "wrong"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	// patients and caregivers are separate namespaces
	if _, err := svc.Authenticate(ctx, account.RoleCaregiver, "alice", goodPassword); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Errorf("wrong role: got %v", err)
	}
	if _, err := svc.Register(ctx, account.RoleCaregiver, "alice", goodPassword); err != nil {
		t.Errorf("same name as caregiver: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(0, 1)
	ctx := context.Background()
	if _, err := svc.Register(ctx, account.RoleCaregiver, "carol", goodPassword); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name     string
		role     account.Role
		username string
		password string
		want     error
	}{
		{"duplicate", account.RoleCaregiver, "carol", goodPassword, account.ErrUsernameTaken},
		{"weak", account.RolePatient, "dan", "password", account.ErrWeakPassword},
		{"empty username", account.RolePatient, "", goodPassword, account.ErrInvalidUsername},
		{"space in username", account.RolePatient, "d an", goodPassword, account.ErrInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.role, tt.username, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthenticateThrottled(t *testing.T) {
	svc := newService(1, 2)
	ctx := context.Background()
	if _, err := svc.Register(ctx, account.RolePatient, "alice", goodPassword); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Authenticate(ctx, account.RolePatient, "alice", "nope"); !errors.Is(err, account.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := svc.Authenticate(ctx, account.RolePatient, "alice", goodPassword); !errors.Is(err, account.ErrTooManyAttempts) {
		t.Errorf("expected throttling, got %v", err)
	}
	// other keys have their own bucket
	if _, err := svc.Authenticate(ctx, account.RoleCaregiver, "alice", goodPassword); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Errorf("separate bucket: got %v", err)
	}
}

func TestIdentity(t *testing.T) {
	var nobody account.Identity
	if nobody.Authenticated() || nobody.String() != "anonymous" {
		t.Errorf("zero identity: %v", nobody)
	}
	if id := account.IdentityOf(account.RoleCaregiver, "carol"); !id.IsCaregiver() || id.IsPatient() || id.String() != "caregiver:carol" {
		t.Errorf("caregiver identity: %v", id)
	}
	if id := account.IdentityOf(account.RoleNone, "x"); id.Authenticated() {
		t.Errorf("RoleNone should be anonymous: %v", id)
	}
	if r, err := account.ParseRole("patient"); err != nil || r != account.RolePatient {
		t.Errorf("ParseRole: %v %v", r, err)
	}
}
