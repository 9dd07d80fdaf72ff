package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password must contain at least 8 characters, an uppercase letter, a lowercase letter, a number, and a special character from (!, @, #, ?)")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrNotFound           = errors.New("account not found")
)

type Role int

const (
	// RoleNone is the zero Role: nobody is logged in.
	RoleNone Role = iota
	RolePatient
	RoleCaregiver
)

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleCaregiver:
		return "caregiver"
	default:
		return "none"
	}
}

// ParseRole is the inverse of Role.String for the two account roles.
func ParseRole(s string) (Role, error) {
	switch s {
	case "patient":
		return RolePatient, nil
	case "caregiver":
		return RoleCaregiver, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// Identity is either Patient(username) or Caregiver(username). The zero value
// is the anonymous identity.
type Identity struct {
	role     Role
	username string
}

func Patient(username string) Identity   { return Identity{role: RolePatient, username: username} }
func Caregiver(username string) Identity { return Identity{role: RoleCaregiver, username: username} }

// IdentityOf builds the identity for role; RoleNone yields the anonymous identity.
func IdentityOf(role Role, username string) Identity {
	switch role {
	case RolePatient:
		return Patient(username)
	case RoleCaregiver:
		return Caregiver(username)
	}
	return Identity{}
}

func (i Identity) Role() Role          { return i.role }
func (i Identity) Username() string    { return i.username }
func (i Identity) Authenticated() bool { return i.role != RoleNone && i.username != "" }
func (i Identity) IsPatient() bool     { return i.Authenticated() && i.role == RolePatient }
func (i Identity) IsCaregiver() bool   { return i.Authenticated() && i.role == RoleCaregiver }

func (i Identity) String() string {
	if !i.Authenticated() {
		return "anonymous"
	}
	return i.role.String() + ":" + i.username
}

// Account is a persisted login record.
type Account struct {
	Username     string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
}

// Store persists accounts. Usernames are unique per role.
type Store interface {
	// CreateAccount fails with ErrUsernameTaken on a duplicate.
	CreateAccount(ctx context.Context, a Account) error
	// GetAccount fails with ErrNotFound.
	GetAccount(ctx context.Context, role Role, username string) (Account, error)
}

func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidUsername, username)
	}
	return nil
}
