package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh events from the connected providers",
	Long: `Refresh events from every connected provider (or just one, with
--provider). Manual refreshes are rate-limited; asking again within
half a minute does nothing.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("force", false, "Refetch the calendar list first (still subject to the refresh cool-down)")
}

func runSync(cmd *cobra.Command, args []string) error {
	providers, err := app.targetProviders()
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Println("No providers connected.")
		fmt.Println("\nConnect one with: calbridge connect google")
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	for _, p := range providers {
		eng, err := app.engineFor(cmd, p)
		if err != nil {
			return err
		}
		if force {
			if _, err := eng.ReloadCalendars(cmd.Context()); err != nil {
				return fmt.Errorf("reload %s calendars: %w", p, err)
			}
		}
		if err := eng.ManualRefresh(cmd.Context()); err != nil {
			return fmt.Errorf("sync %s: %w", p, err)
		}
	}

	fmt.Printf("✓ Synced. %d events cached.\n", app.cache.Len())
	return nil
}
