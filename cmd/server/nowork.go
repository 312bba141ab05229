package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

var noWorkShowPast bool

var noWorkCmd = &cobra.Command{
	Use:   "nowork",
	Short: "Manage the shared no-work-day registry",
}

var noWorkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming no-work days",
	Args:  cobra.NoArgs,
	RunE:  runNoWorkList,
}

var noWorkAddCmd = &cobra.Command{
	Use:   "add DATE [REASON...]",
	Short: "Block a date (YYYY-MM-DD) for scheduling",
	Example: `  crewcal nowork add 2024-07-04 Independence Day
  crewcal nowork add 2024-12-24`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNoWorkAdd,
}

var noWorkRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Unblock a no-work day by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoWorkRemove,
}

func init() {
	noWorkListCmd.Flags().BoolVar(&noWorkShowPast, "past", false, "also list past no-work days")
	noWorkCmd.AddCommand(noWorkListCmd, noWorkAddCmd, noWorkRemoveCmd)
	rootCmd.AddCommand(noWorkCmd)
}

func runNoWorkList(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	days, err := svc.ListNoWorkDays(cmd.Context())
	if err != nil {
		return err
	}
	upcoming, past := calendar.SplitUpcoming(days, calendar.FromTime(time.Now()))
	out := cmd.OutOrStdout()
	printNoWorkDays(cmd, "Upcoming", upcoming)
	if noWorkShowPast {
		fmt.Fprintln(out)
		printNoWorkDays(cmd, "Past", past)
	}
	return nil
}

func printNoWorkDays(cmd *cobra.Command, title string, days []models.NoWorkDay) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d)\n", title, len(days))
	fmt.Fprintln(out, strings.Repeat("=", 40))
	for _, d := range days {
		fmt.Fprintf(out, "  %s  %-24s %s\n", d.Date, d.Reason, d.ID)
	}
}

func runNoWorkAdd(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	existing, err := svc.ListNoWorkDays(cmd.Context())
	if err != nil {
		return err
	}
	day, err := svc.AddNoWorkDay(cmd.Context(), args[0], strings.Join(args[1:], " "), existing)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Blocked %s (%s) as %s\n", day.Date, day.Reason, day.ID)
	return nil
}

func runNoWorkRemove(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	if err := svc.DeleteNoWorkDay(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
