package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/session"
)

func newCreateCmd(a *app, role account.Role) *cobra.Command {
	return &cobra.Command{
		Use:   "create_" + role.String() + " <username> <password>",
		Short: "Register a " + role.String() + " account",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ready(ctx); err != nil {
				return err
			}
			id, err := a.accounts.Register(ctx, role, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created user %s\n", id.Username())
			return nil
		},
	}
}

func newLoginCmd(a *app, role account.Role) *cobra.Command {
	return &cobra.Command{
		Use:   "login_" + role.String() + " <username> <password>",
		Short: "Log in as a " + role.String(),
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.sessionStore()
			if err != nil {
				return err
			}
			// refused before the password is checked
			if _, ok := st.Current(); ok {
				return session.ErrAlreadyLoggedIn
			}

			ctx := cmd.Context()
			if err := a.ready(ctx); err != nil {
				return err
			}
			id, err := a.accounts.Authenticate(ctx, role, args[0], args[1])
			if err != nil {
				return err
			}
			if _, err := st.Login(id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as: %s\n", id.Username())
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.sessionStore()
			if err != nil {
				return err
			}
			if err := st.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Successfully logged out.")
			return nil
		},
	}
}
