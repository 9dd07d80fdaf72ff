package memstore

import (
	"context"

	"github.com/example/vaxsched/internal/account"
)

func (s *Store) CreateAccount(ctx context.Context, a account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := accountKey{role: a.Role, username: a.Username}
	if _, ok := s.accounts[k]; ok {
		return account.ErrUsernameTaken
	}
	s.accounts[k] = a
	return nil
}

func (s *Store) GetAccount(ctx context.Context, role account.Role, username string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountKey{role: role, username: username}]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}
