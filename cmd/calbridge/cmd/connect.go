package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theakshaypant/calbridge/internal/core"
)

var connectCmd = &cobra.Command{
	Use:   "connect <google|outlook>",
	Short: "Authorize a calendar provider",
	Long: `Authorize a calendar provider using OAuth.

With your own app credentials in the config (google.client_id /
outlook.client_id), calbridge opens your browser and catches the
redirect on a local port. Without them, a license key unlocks the
built-in app via the device flow: you get a short code to type in at
the provider's verification page.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <google|outlook>",
	Short: "Revoke and remove a provider connection",
	Long: `Revoke the stored tokens where the provider supports it, and remove
the local connection, cached events, and sync state. Revocation is
best effort; the local cleanup happens regardless.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisconnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}

	if err := app.authority.Authenticate(cmd.Context(), p); err != nil {
		return fmt.Errorf("connect %s: %w", p, err)
	}

	// Best effort: label the connection with the primary calendar, which
	// for Google is the account email.
	if eng, err := app.engineFor(cmd, p); err == nil {
		if cals, err := eng.ReloadCalendars(cmd.Context()); err == nil {
			for _, cal := range cals {
				if !cal.Primary {
					continue
				}
				label := cal.Name
				if strings.Contains(cal.ID, "@") {
					label = cal.ID
				}
				if err := app.state.SetAccount(p, label); err != nil {
					app.logger.Warn("could not record account label", "provider", p, "error", err)
				}
				break
			}
		}
	}

	fmt.Printf("\n✅ %s connected.\n", p.DisplayName())
	fmt.Printf("\nPick calendars with: calbridge calendars %s\n", p)
	fmt.Println("Then run 'calbridge' to see your events.")
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}

	if err := app.authority.Disconnect(cmd.Context(), p); err != nil {
		return fmt.Errorf("disconnect %s: %w", p, err)
	}

	// Local sync state goes too; the next connect starts from a full
	// sync.
	app.cache.DropProvider(p)
	if err := app.state.ClearCursors(p); err != nil {
		return err
	}
	if err := app.state.SetEnabledCalendars(p, nil); err != nil {
		return err
	}
	if err := app.state.SetAccount(p, ""); err != nil {
		return err
	}

	fmt.Printf("✅ %s disconnected.\n", p.DisplayName())
	return nil
}

// providerOrDefault resolves an optional positional provider argument,
// then the --provider flag, falling back to the single connected
// provider when unambiguous.
func providerOrDefault(args []string) (core.Provider, error) {
	if len(args) > 0 {
		return parseProvider(args[0])
	}
	if name := viper.GetString("provider"); name != "" {
		return parseProvider(name)
	}
	connected, err := app.connectedProviders()
	if err != nil {
		return "", err
	}
	switch len(connected) {
	case 0:
		return "", fmt.Errorf("no providers connected; run 'calbridge connect google' first")
	case 1:
		return connected[0], nil
	default:
		return "", fmt.Errorf("multiple providers connected; name one (google or outlook)")
	}
}
