package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/config"
	"github.com/example/vaxsched/internal/migrate"
	"github.com/example/vaxsched/internal/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			switch a.cfg.Driver {
			case config.DriverMemory:
				fmt.Fprintln(a.out, "memory store has no schema")
				return nil
			case config.DriverPostgres:
				// opened directly so the applied versions can be listed
				st, err := postgres.Open(cmd.Context(), a.cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer st.Close()
				applied, err := migrate.Up(cmd.Context(), st.DB())
				if err != nil {
					return err
				}
				for _, v := range applied {
					fmt.Fprintf(a.out, "applied %s\n", v)
				}
			default:
				if err := a.ready(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, "schema up to date")
			return nil
		},
	}
}
