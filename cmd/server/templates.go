package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect task templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active task templates by category",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the starter template catalogue into an empty store",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesSeed,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesSeedCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	templates, err := svc.ListTemplates(cmd.Context())
	if err != nil {
		return err
	}
	groups := calendar.GroupTemplates(templates)

	order := append([]string(nil), models.Categories...)
	var extra []string
	for category := range groups {
		if !slices.Contains(order, category) {
			extra = append(extra, category)
		}
	}
	slices.Sort(extra)

	out := cmd.OutOrStdout()
	for _, category := range append(order, extra...) {
		list := groups[category]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s\n", category)
		for _, t := range list {
			duration := "-"
			if t.EstimatedDuration != nil {
				duration = fmt.Sprintf("%gh", *t.EstimatedDuration)
			}
			fmt.Fprintf(out, "  %-32s %6s  %s\n", t.Name, duration, t.ID)
		}
	}
	return nil
}

func runTemplatesSeed(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	n, err := svc.SeedTemplates(cmd.Context())
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Task templates already exist. Skipping seed.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d task templates\n", n)
	return nil
}
