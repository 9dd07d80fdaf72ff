package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/logger"
	"github.com/example/vaxsched/internal/session"
)

const banner = `
Welcome to the COVID-19 Vaccine Reservation Scheduling Application!
*** Please enter one of the following commands ***
> create_patient <username> <password>
> create_caregiver <username> <password>
> login_patient <username> <password>
> login_caregiver <username> <password>
> search_caregiver_schedule <date>
> reserve <date> <vaccine>
> upload_availability <date>
> cancel <appointment_id>
> add_doses <vaccine> <number>
> show_appointments
> logout
> quit
`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt; the login lasts until logout or quit",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ready(ctx); err != nil {
				return err
			}
			sh := &app{
				out:        a.out,
				cfg:        a.cfg,
				configured: true,
				store:      a.store,
				sessions:   session.NewMemory(),
				engine:     a.engine,
				accounts:   a.accounts,
				keepOpen:   true,
			}
			return runShell(ctx, sh, cmd.InOrStdin())
		},
	}
}

// runShell reads one command per line and runs it against sh until quit
// or end of input.
func runShell(ctx context.Context, sh *app, in io.Reader) error {
	fmt.Fprint(sh.out, banner)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(sh.out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			report(sh.out, errUsage)
			continue
		}
		if fields[0] == "quit" {
			fmt.Fprintln(sh.out, "Bye!")
			return nil
		}
		runLine(ctx, sh, fields)
	}
}

func runLine(ctx context.Context, sh *app, fields []string) {
	root := newRootCmd(sh)
	root.SetArgs(fields)
	root.SetErr(io.Discard)

	if c, _, err := root.Find(fields); err != nil || c == root || isMeta(c) {
		report(sh.out, errUnknownCommand)
		return
	}
	if err := root.ExecuteContext(ctx); err != nil {
		logger.LogDebug("shell: %s: %v", fields[0], err)
		report(sh.out, err)
	}
}

// isMeta reports commands that make no sense inside the shell.
func isMeta(c *cobra.Command) bool {
	switch c.Name() {
	case "migrate", "keys", "help", "completion":
		return true
	}
	return false
}
