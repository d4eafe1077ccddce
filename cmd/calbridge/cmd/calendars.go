package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars [google|outlook]",
	Short: "List calendars and choose which ones sync",
	Long: `List the provider's calendars. By default every calendar syncs;
narrow the selection with --enable, or go back to everything with
--all.

Example:
  calbridge calendars google
  calbridge calendars google --enable primary,team@group.calendar.google.com
  calbridge calendars google --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCalendars,
}

func init() {
	rootCmd.AddCommand(calendarsCmd)

	calendarsCmd.Flags().String("enable", "", "Comma-separated calendar IDs to sync (replaces the selection)")
	calendarsCmd.Flags().String("disable", "", "Comma-separated calendar IDs to stop syncing")
	calendarsCmd.Flags().Bool("all", false, "Sync every calendar (clears the selection)")
}

func runCalendars(cmd *cobra.Command, args []string) error {
	p, err := providerOrDefault(args)
	if err != nil {
		return err
	}
	eng, err := app.engineFor(cmd, p)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("all") {
		if err := app.state.SetEnabledCalendars(p, nil); err != nil {
			return err
		}
		fmt.Printf("✓ All %s calendars will sync\n", p.DisplayName())
		return nil
	}

	if enable, _ := cmd.Flags().GetString("enable"); enable != "" {
		ids := splitIDs(enable)
		if len(ids) == 0 {
			return fmt.Errorf("--enable needs at least one calendar ID")
		}
		if err := app.state.SetEnabledCalendars(p, ids); err != nil {
			return err
		}
		fmt.Printf("✓ %d %s calendar(s) selected for sync\n", len(ids), p.DisplayName())
		return nil
	}

	if disable, _ := cmd.Flags().GetString("disable"); disable != "" {
		drop := map[string]bool{}
		for _, id := range splitIDs(disable) {
			drop[id] = true
		}

		// An empty selection means "everything", so start from the full
		// calendar list before subtracting.
		current := app.state.EnabledCalendars(p)
		if len(current) == 0 {
			calendars, err := eng.ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			for _, cal := range calendars {
				current = append(current, cal.ID)
			}
		}

		var keep []string
		for _, id := range current {
			if !drop[id] {
				keep = append(keep, id)
			}
		}
		if len(keep) == 0 {
			return fmt.Errorf("that would disable every calendar; use 'calbridge disconnect %s' instead", p)
		}
		if err := app.state.SetEnabledCalendars(p, keep); err != nil {
			return err
		}
		fmt.Printf("✓ %d %s calendar(s) selected for sync\n", len(keep), p.DisplayName())
		return nil
	}

	calendars, err := eng.ListCalendars(cmd.Context())
	if err != nil {
		return err
	}

	enabled := map[string]bool{}
	for _, id := range app.state.EnabledCalendars(p) {
		enabled[id] = true
	}

	if acct := app.state.Account(p); acct != "" {
		fmt.Printf("📅 %s calendars (%s):\n", p.DisplayName(), acct)
	} else {
		fmt.Printf("📅 %s calendars:\n", p.DisplayName())
	}
	fmt.Println("─────────────────────────────────────────────────")

	for _, cal := range calendars {
		marker := "  "
		if len(enabled) == 0 || enabled[cal.ID] {
			marker = "✓ "
		}
		name := cal.Name
		if cal.Primary {
			name += " (primary)"
		}
		fmt.Printf("%s%s\n", marker, name)
		fmt.Printf("    ID: %s\n", cal.ID)
	}

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d calendars\n", len(calendars))
	if len(enabled) > 0 {
		fmt.Printf("Syncing %d of them. Use --all to sync everything.\n", len(enabled))
	}
	fmt.Println("\nTip: narrow the selection with --enable <id,id,...>")

	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
