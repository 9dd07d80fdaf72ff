package migrate

import (
	"context"
	"embed"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/vaxsched/internal/db"
	"github.com/example/vaxsched/internal/logger"
)

//go:embed *.sql
var fs embed.FS

// Files lists the embedded migrations in the order they are applied.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Up applies every migration not yet recorded in schema_migrations and
// returns the versions it applied. Each file runs in its own transaction
// together with its bookkeeping row.
func Up(ctx context.Context, d *db.DB) ([]string, error) {
	files, err := Files()
	if err != nil {
		return nil, err
	}

	if err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now());`); err != nil {
		return nil, err
	}

	var applied []string
	for _, f := range files {
		var done bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&done); err != nil {
			return applied, err
		}
		if done {
			continue
		}

		b, err := fs.ReadFile(f)
		if err != nil {
			return applied, err
		}

		err = d.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(b)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", f, err)
		}
		logger.LogInfo("migrate: applied %s", f)
		applied = append(applied, f)
	}

	return applied, nil
}
