package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/theakshaypant/calbridge/internal/auth"
	"github.com/theakshaypant/calbridge/internal/engine"
	"github.com/theakshaypant/calbridge/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive agenda view",
	Long: `Open the interactive agenda. Arrow keys move between events and
days, 'r' refreshes, enter opens the selected event in the browser.`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	providers, err := app.targetProviders()
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Println("No providers connected.")
		fmt.Println("\nConnect one with: calbridge connect google")
		return nil
	}

	engines := make([]*engine.Engine, 0, len(providers))
	for _, p := range providers {
		eng, err := app.engineFor(cmd, p)
		if err != nil {
			return err
		}
		if err := eng.RefreshAll(cmd.Context()); err != nil {
			return fmt.Errorf("sync %s: %w", p, err)
		}
		engines = append(engines, eng)
	}

	refresh := func(ctx context.Context) error {
		for _, eng := range engines {
			if err := eng.ManualRefresh(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	model := tui.NewModel(app.cache.Snapshot, refresh, auth.OpenBrowser)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
