package account

import (
	"context"
	"errors"
	"time"

	"github.com/example/vaxsched/internal/logger"
)

type Service struct {
	Store    Store
	Throttle *Throttle
}

func NewService(st Store, th *Throttle) *Service {
	return &Service{Store: st, Throttle: th}
}

// Register creates a patient or caregiver account.
func (s *Service) Register(ctx context.Context, role Role, username, password string) (Identity, error) {
	if role != RolePatient && role != RoleCaregiver {
		return Identity{}, errors.New("role required")
	}
	if err := ValidateUsername(username); err != nil {
		return Identity{}, err
	}
	if _, err := s.Store.GetAccount(ctx, role, username); err == nil {
		return Identity{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}
	if !StrongPassword(password) {
		return Identity{}, ErrWeakPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	a := Account{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	// the store's uniqueness constraint still catches a concurrent duplicate
	if err := s.Store.CreateAccount(ctx, a); err != nil {
		return Identity{}, err
	}
	logger.LogInfo("account: created %s %q", role, username)
	return IdentityOf(role, username), nil
}

// Authenticate checks a password and returns the matching identity.
func (s *Service) Authenticate(ctx context.Context, role Role, username, password string) (Identity, error) {
	if s.Throttle != nil && !s.Throttle.Allow(role.String()+":"+username) {
		logger.LogWarn("account: login throttled for %s %q", role, username)
		return Identity{}, ErrTooManyAttempts
	}
	a, err := s.Store.GetAccount(ctx, role, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if !CheckPassword(a.PasswordHash, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return IdentityOf(role, username), nil
}
