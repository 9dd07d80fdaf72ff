package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/example/vaxsched/internal/db"
	"github.com/example/vaxsched/internal/migrate"
	"github.com/example/vaxsched/internal/postgres"
	"github.com/example/vaxsched/internal/reservation/storetest"
)

var migrateOnce sync.Once

// openTestStore connects to TEST_DATABASE_URL, migrates once and empties
// every table. The suite is skipped without a database.
func openTestStore(t *testing.T) storetest.Backend {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(d.Close)
	if err := d.Ping(ctx); err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}

	var migErr error
	migrateOnce.Do(func() { _, migErr = migrate.Up(ctx, d) })
	if migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	if err := d.Exec(ctx, `TRUNCATE vaccines, availabilities, appointments, patients, caregivers`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return postgres.New(d)
}

func TestStore(t *testing.T) {
	storetest.Run(t, openTestStore)
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := openTestStore(t).(*postgres.Store)
	applied, err := migrate.Up(context.Background(), st.DB())
	if err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("re-applied %v", applied)
	}
}
