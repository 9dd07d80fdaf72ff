package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/config"
	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/memstore"
	"github.com/example/vaxsched/internal/migrate"
	"github.com/example/vaxsched/internal/postgres"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/session"
	"github.com/example/vaxsched/internal/sqlite"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// backend is what every store driver provides.
type backend interface {
	reservation.Store
	account.Store
	Close() error
}

// app carries the state a command tree runs against. One-shot invocations
// build a fresh app per process; the shell shares one across lines.
type app struct {
	out io.Writer

	cfg        config.Config
	configured bool

	store    backend
	sessions session.Store
	engine   *reservation.Engine
	accounts *account.Service

	// keepOpen leaves the store open after a command returns.
	keepOpen bool
}

func (a *app) loadConfig() error {
	if a.configured {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.Log); err != nil {
		return err
	}
	a.cfg, a.configured = cfg, true
	return nil
}

// ready opens the store and builds the services on first use.
func (a *app) ready(ctx context.Context) error {
	if a.engine != nil {
		return nil
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if a.store == nil {
		st, err := openStore(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("%w: %w", reservation.ErrPersistence, err)
		}
		a.store = st
	}
	a.engine = reservation.NewEngine(a.store, a.cfg.TxTimeout)
	a.accounts = account.NewService(a.store, account.NewThrottle(a.cfg.LoginRatePerMin, a.cfg.LoginBurst))
	return nil
}

func (a *app) sessionStore() (session.Store, error) {
	if a.sessions != nil {
		return a.sessions, nil
	}
	if err := a.loadConfig(); err != nil {
		return nil, err
	}
	fs, err := session.NewFileStore(a.cfg.SessionFile, a.cfg.SessionHashKey, a.cfg.SessionBlockKey, a.cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}
	a.sessions = fs
	return fs, nil
}

// identity is the logged-in identity, or the zero identity when nobody is.
func (a *app) identity() (account.Identity, error) {
	st, err := a.sessionStore()
	if err != nil {
		return account.Identity{}, err
	}
	return session.Identity(st), nil
}

func (a *app) close() {
	if a.keepOpen || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.LogWarn("close store: %v", err)
	}
	a.store, a.engine, a.accounts = nil, nil, nil
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.LogWarn("memory store: nothing is kept after this process exits")
		return memstore.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if _, err := migrate.Up(ctx, st.DB()); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vaxsched",
		Short:         "Vaccine appointment scheduler for patients and caregivers",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.out)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newMigrateCmd(a))

	root.AddCommand(newCreateCmd(a, account.RolePatient))
	root.AddCommand(newCreateCmd(a, account.RoleCaregiver))
	root.AddCommand(newLoginCmd(a, account.RolePatient))
	root.AddCommand(newLoginCmd(a, account.RoleCaregiver))
	root.AddCommand(newLogoutCmd(a))

	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newReserveCmd(a))
	root.AddCommand(newUploadAvailabilityCmd(a))
	root.AddCommand(newAddDosesCmd(a))
	root.AddCommand(newCancelCmd(a))
	root.AddCommand(newShowAppointmentsCmd(a))

	if !a.keepOpen {
		root.AddCommand(newShellCmd(a))
	}
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{out: os.Stdout}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		logger.LogDebug("vaxsched: %v", err)
		report(os.Stdout, err)
		os.Exit(1)
	}
}
