package postgres

import (
	"context"
	"fmt"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/db"
)

func accountTable(role account.Role) (string, error) {
	switch role {
	case account.RolePatient:
		return "patients", nil
	case account.RoleCaregiver:
		return "caregivers", nil
	}
	return "", fmt.Errorf("postgres: no table for role %v", role)
}

func (s *Store) CreateAccount(ctx context.Context, a account.Account) error {
	table, err := accountTable(a.Role)
	if err != nil {
		return err
	}
	err = s.db.Exec(ctx,
		`INSERT INTO `+table+` (username, password_bcrypt, created_at) VALUES ($1,$2,$3)`,
		a.Username, a.PasswordHash, a.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return account.ErrUsernameTaken
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, role account.Role, username string) (account.Account, error) {
	table, err := accountTable(role)
	if err != nil {
		return account.Account{}, err
	}
	row := s.db.QueryRow(ctx, `SELECT username, password_bcrypt, created_at FROM `+table+` WHERE username=$1`, username)
	a := account.Account{Role: role}
	if err := row.Scan(&a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		if db.IsNotFound(err) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}
	return a, nil
}
