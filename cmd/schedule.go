package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/availability"
	"github.com/example/vaxsched/internal/reservation"
)

// engineCmd wraps run with the store, engine and current identity.
func engineCmd(a *app, run func(cmd *cobra.Command, who account.Identity, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		who, err := a.identity()
		if err != nil {
			return err
		}
		if !who.Authenticated() {
			return reservation.ErrNotAuthenticated
		}
		if err := a.ready(cmd.Context()); err != nil {
			return err
		}
		return run(cmd, who, args)
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search_caregiver_schedule <date>",
		Short: "List caregivers free on a date and the doses left per vaccine",
		Args:  exactArgs(1),
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			s, err := a.engine.SearchSchedule(cmd.Context(), who, args[0])
			if err != nil {
				return err
			}
			for _, c := range s.Caregivers {
				fmt.Fprintln(a.out, c)
			}
			for _, v := range s.Vaccines {
				fmt.Fprintf(a.out, "%s %d\n", v.Name, v.Doses)
			}
			return nil
		}),
	}
}

func newReserveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <date> <vaccine>",
		Short: "Book a vaccine with the first free caregiver on a date",
		Args:  exactArgs(2),
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			res, err := a.engine.Reserve(cmd.Context(), who, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Appointment ID %d, Caregiver username %s\n", res.AppointmentID, res.Caregiver)
			return nil
		}),
	}
}

func newUploadAvailabilityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload_availability <date>",
		Short: "Offer a caregiver slot on a date",
		Args:  exactArgs(1),
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			if _, err := a.engine.UploadAvailability(cmd.Context(), who, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Availability uploaded!")
			return nil
		}),
	}
}

func newAddDosesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add_doses <vaccine> <number>",
		Short: "Add doses of a vaccine, creating it on first use",
		Args:  exactArgs(2),
		// a negative count is an argument, not a flag
		DisableFlagParsing: true,
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: dose count %q", errUsage, args[1])
			}
			if _, err := a.engine.AddDoses(cmd.Context(), who, args[0], n); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Doses updated!")
			return nil
		}),
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <appointment_id>",
		Short: "Cancel one of your appointments",
		Args:  exactArgs(1),
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: appointment id %q", errUsage, args[0])
			}
			appt, err := a.engine.Cancel(cmd.Context(), who, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Appointment ID %d cancelled\n", appt.ID)
			return nil
		}),
	}
}

func newShowAppointmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show_appointments",
		Short: "List your appointments",
		Args:  exactArgs(0),
		RunE: engineCmd(a, func(cmd *cobra.Command, who account.Identity, args []string) error {
			seq, err := a.engine.Appointments(cmd.Context(), who)
			if err != nil {
				return err
			}
			n := 0
			for appt := range seq {
				// the other party of the appointment
				other := appt.Caregiver
				if who.IsCaregiver() {
					other = appt.Patient
				}
				fmt.Fprintf(a.out, "%d %s %s %s\n", appt.ID, appt.Vaccine, availability.Key(appt.Date), other)
				n++
			}
			if n == 0 {
				fmt.Fprintln(a.out, "No appointments scheduled!")
			}
			return nil
		}),
	}
}
