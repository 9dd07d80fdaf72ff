package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/vaxsched/internal/account"
)

func accountTable(role account.Role) (string, error) {
	switch role {
	case account.RolePatient:
		return "patients", nil
	case account.RoleCaregiver:
		return "caregivers", nil
	}
	return "", fmt.Errorf("sqlite: no table for role %v", role)
}

func (s *Store) CreateAccount(ctx context.Context, a account.Account) error {
	table, err := accountTable(a.Role)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (username, password_bcrypt, created_at) VALUES (?, ?, ?)`,
		a.Username, a.PasswordHash, a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return account.ErrUsernameTaken
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, role account.Role, username string) (account.Account, error) {
	table, err := accountTable(role)
	if err != nil {
		return account.Account{}, err
	}
	var created string
	a := account.Account{Role: role}
	err = s.db.QueryRowContext(ctx,
		`SELECT username, password_bcrypt, created_at FROM `+table+` WHERE username = ?`, username,
	).Scan(&a.Username, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return account.Account{}, fmt.Errorf("sqlite: account %s: %w", username, err)
	}
	return a, nil
}
