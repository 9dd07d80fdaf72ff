package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/reservation"
	"github.com/example/vaxsched/internal/session"
)

// errUsage marks malformed command input.
var errUsage = errors.New("usage")

var errUnknownCommand = errors.New("unknown command")

var accountMessages = []struct {
	err error
	msg string
}{
	{errUsage, "Please try again!"},
	{errUnknownCommand, "Invalid operation name!"},
	{account.ErrUsernameTaken, "Username taken, try again!"},
	{account.ErrInvalidUsername, "Please enter a username without spaces."},
	{account.ErrWeakPassword, "Password must contain at least 8 characters, an uppercase letter, a lowercase letter, a number, and a special character from (!, @, #, ?)"},
	{account.ErrInvalidCredentials, "Login failed."},
	{account.ErrTooManyAttempts, "Too many login attempts, try again later."},
	{session.ErrAlreadyLoggedIn, "User already logged in."},
	{session.ErrNotLoggedIn, "Please login first."},
}

// messages renders err for the terminal, one line per error kind.
func messages(err error) []string {
	for _, m := range accountMessages {
		if errors.Is(err, m.err) {
			return []string{m.msg}
		}
	}
	return reservation.Messages(err)
}

func report(w io.Writer, err error) {
	for _, line := range messages(err) {
		fmt.Fprintln(w, line)
	}
}

// exactArgs is cobra.ExactArgs reporting errUsage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}
