// Package postgres keeps the ledgers in PostgreSQL. Reservations run at
// READ COMMITTED and lean on row locks: the chosen slot is claimed with
// FOR UPDATE SKIP LOCKED and the vaccine row with FOR UPDATE, so concurrent
// reservers serialize on stock and spread across caregivers.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/vaxsched/internal/db"
	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/reservation"
)

type Store struct {
	db *db.DB
}

func New(d *db.DB) *Store { return &Store{db: d} }

// Open connects and pings. The schema comes from migrate.Up.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	d, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return New(d), nil
}

func (s *Store) DB() *db.DB { return s.db }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Atomically(ctx context.Context, fn func(reservation.Ledgers) error) error {
	return s.db.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		err := fn(newLedgers(tx, true))
		if err != nil {
			logger.LogDebug("postgres: rollback: %v", err)
		}
		return err
	})
}

func (s *Store) View(ctx context.Context, fn func(reservation.Ledgers) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return s.db.InTx(ctx, opts, func(tx pgx.Tx) error {
		return fn(newLedgers(tx, false))
	})
}
