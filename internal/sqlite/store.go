// Package sqlite keeps the ledgers in a single SQLite file. Every transaction
// starts with BEGIN IMMEDIATE over one pooled connection, so reservations are
// fully serialized.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/reservation"
)

//go:embed schema.sql
var schemaSQL string

const queryTimeout = 5 * time.Second

type Store struct {
	db *sql.DB
}

func dsn(path string) string {
	return "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)"
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path required")
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.LogWarn("sqlite: %s: %v", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	logger.LogDebug("sqlite: opened %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.LogError("sqlite: rollback: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) Atomically(ctx context.Context, fn func(reservation.Ledgers) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(newLedgers(tx, true))
	})
}

func (s *Store) View(ctx context.Context, fn func(reservation.Ledgers) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(newLedgers(tx, false))
	})
}
