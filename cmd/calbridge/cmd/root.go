package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theakshaypant/calbridge/internal/adapter/google"
	"github.com/theakshaypant/calbridge/internal/adapter/outlook"
	"github.com/theakshaypant/calbridge/internal/auth"
	"github.com/theakshaypant/calbridge/internal/core"
	"github.com/theakshaypant/calbridge/internal/engine"
	"github.com/theakshaypant/calbridge/internal/notify"
	"github.com/theakshaypant/calbridge/internal/settings"
	"github.com/theakshaypant/calbridge/internal/tui"
	"github.com/theakshaypant/calbridge/internal/util"
)

var (
	cfgFile string
	profile string
	verbose bool
	app     *application
)

// application holds the long-lived collaborators every command shares:
// the token authority, the settings store, the event cache, and one
// sync engine per provider (built lazily).
type application struct {
	logger    *slog.Logger
	store     auth.ConnectionStore
	state     *settings.Store
	authority *auth.Authority
	cache     *core.EventCache
	notifier  notify.Notifier

	mu      sync.Mutex
	engines map[core.Provider]*engine.Engine
}

var rootCmd = &cobra.Command{
	Use:   "calbridge",
	Short: "A terminal calendar client that keeps Google and Outlook in one place",
	Long: `calbridge pulls events from Google Calendar and Outlook into a local
cache and shows them in your terminal, without opening a browser.

Connect a provider once with 'calbridge connect', then run 'calbridge'
to see your upcoming events or 'calbridge ui' for the interactive view.`,
	PersistentPreRunE: initApp,
	RunE:              listEvents,
}

func Execute() {
	err := rootCmd.Execute()
	if app != nil && app.authority != nil {
		app.authority.Destroy()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/calbridge/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "config profile to use (e.g., work, personal)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.PersistentFlags().IntP("days", "d", 7, "Number of days to show (ignored if --from/--to specified)")
	rootCmd.PersistentFlags().String("from", "", "Start date (YYYY-MM-DD, 'today', 'tomorrow', 'monday', etc.)")
	rootCmd.PersistentFlags().String("to", "", "End date (YYYY-MM-DD, 'today', 'tomorrow', 'monday', etc.)")
	rootCmd.PersistentFlags().String("provider", "", "Limit to one provider (google or outlook)")

	viper.BindPFlag("days", rootCmd.PersistentFlags().Lookup("days"))
	viper.BindPFlag("from", rootCmd.PersistentFlags().Lookup("from"))
	viper.BindPFlag("to", rootCmd.PersistentFlags().Lookup("to"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "calbridge")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CALBRIDGE")
	viper.AutomaticEnv()

	viper.SetDefault("days", 7)

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	applyProfile()
}

// applyProfile merges profile-specific settings over defaults
func applyProfile() {
	activeProfile := profile
	if activeProfile == "" {
		activeProfile = viper.GetString("default_profile")
	}
	if activeProfile == "" {
		return
	}

	profileKey := "profiles." + activeProfile
	if !viper.IsSet(profileKey) {
		fmt.Fprintf(os.Stderr, "Warning: profile '%s' not found in config\n", activeProfile)
		return
	}

	// Settings a profile may override, applied only when the user
	// hasn't explicitly set the matching CLI flag.
	overridable := []string{
		"provider",
		"days",
		"from",
		"to",
		"license_key",
		"google.client_id",
		"google.client_secret",
		"outlook.client_id",
		"outlook.tenant_id",
	}

	for _, key := range overridable {
		profileSettingKey := profileKey + "." + key
		if viper.IsSet(profileSettingKey) && !isFlagExplicitlySet(key) {
			viper.Set(key, viper.Get(profileSettingKey))
		}
	}
}

func isFlagExplicitlySet(viperKey string) bool {
	flagName := strings.ReplaceAll(viperKey, "_", "-")
	f := rootCmd.PersistentFlags().Lookup(flagName)

	return f != nil && f.Changed
}

// initApp wires the shared application state. Commands that only touch
// the config file skip it.
func initApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "profile" ||
		cmd.Parent() != nil && cmd.Parent().Name() == "profile" {
		return nil
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store, err := auth.DefaultStore()
	if err != nil {
		return fmt.Errorf("open connection store: %w", err)
	}

	statePath, err := settings.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolve state path: %w", err)
	}
	state, err := settings.Open(statePath)
	if err != nil {
		return err
	}

	configs := map[core.Provider]*auth.ProviderConfig{
		core.ProviderGoogle: auth.NewProviderConfig(core.ProviderGoogle, auth.Credentials{
			ClientID:     viper.GetString("google.client_id"),
			ClientSecret: viper.GetString("google.client_secret"),
		}),
		core.ProviderOutlook: auth.NewProviderConfig(core.ProviderOutlook, auth.Credentials{
			ClientID: viper.GetString("outlook.client_id"),
			TenantID: viper.GetString("outlook.tenant_id"),
		}),
	}

	license := auth.LicenseFunc(func() bool {
		return viper.GetString("license_key") != ""
	})

	notifier := notify.NewTerminal()
	authority := auth.NewAuthority(store, configs, license,
		auth.WithLogger(logger),
		auth.WithNotifier(notifier),
		auth.WithPrompt(tui.NewDeviceCodePrompt()),
	)

	app = &application{
		logger:    logger,
		store:     store,
		state:     state,
		authority: authority,
		cache:     core.NewEventCache(),
		notifier:  notifier,
		engines:   map[core.Provider]*engine.Engine{},
	}
	return nil
}

// engineFor returns the sync engine for a provider, building the
// adapter on first use.
func (a *application) engineFor(cmd *cobra.Command, p core.Provider) (*engine.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if eng, ok := a.engines[p]; ok {
		return eng, nil
	}

	var adapter core.Adapter
	var err error
	switch p {
	case core.ProviderGoogle:
		adapter, err = google.New(cmd.Context(), a.authority)
	case core.ProviderOutlook:
		adapter, err = outlook.New(a.authority)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: google, outlook)", p)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s adapter: %w", p, err)
	}

	eng := engine.New(adapter, a.cache, a.state,
		engine.WithLogger(a.logger),
		engine.WithNotifier(a.notifier),
	)
	a.engines[p] = eng
	return eng, nil
}

// connectedProviders returns providers with a stored connection.
func (a *application) connectedProviders() ([]core.Provider, error) {
	var out []core.Provider
	for _, p := range core.Providers {
		conn, err := a.store.Load(p)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// targetProviders resolves --provider, defaulting to every connected
// provider.
func (a *application) targetProviders() ([]core.Provider, error) {
	if name := viper.GetString("provider"); name != "" {
		p, err := parseProvider(name)
		if err != nil {
			return nil, err
		}
		return []core.Provider{p}, nil
	}
	return a.connectedProviders()
}

func parseProvider(name string) (core.Provider, error) {
	p := core.Provider(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider: %s (supported: google, outlook)", name)
	}
	return p, nil
}

func listEvents(cmd *cobra.Command, args []string) error {
	providers, err := app.targetProviders()
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Println("No providers connected.")
		fmt.Println("\nConnect one with: calbridge connect google")
		return nil
	}

	for _, p := range providers {
		eng, err := app.engineFor(cmd, p)
		if err != nil {
			return err
		}
		if err := eng.RefreshAll(cmd.Context()); err != nil {
			return fmt.Errorf("sync %s: %w", p, err)
		}
	}

	window, err := resolveWindow()
	if err != nil {
		return err
	}
	events := app.cache.EventsIn(window)

	fmt.Printf("📅 Events from %s to %s:\n", window.Start.Format("Jan 2"), window.End.Format("Jan 2"))
	fmt.Println("─────────────────────────────────────────────────")

	if len(events) == 0 {
		fmt.Println("No upcoming events found.")
		return nil
	}

	for _, event := range events {
		printEvent(event)
	}

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d events\n", len(events))

	return nil
}

// resolveWindow turns --days/--from/--to into a display window.
func resolveWindow() (core.TimeWindow, error) {
	now := time.Now()
	var start, end time.Time

	fromStr := viper.GetString("from")
	toStr := viper.GetString("to")

	if fromStr != "" || toStr != "" {
		if fromStr != "" {
			var err error
			start, err = parseDate(fromStr, now)
			if err != nil {
				return core.TimeWindow{}, err
			}
		} else {
			start = now
		}

		if toStr != "" {
			var err error
			end, err = parseDate(toStr, now)
			if err != nil {
				return core.TimeWindow{}, err
			}
			// End of day
			end = end.Add(24*time.Hour - time.Second)
		} else {
			days := viper.GetInt("days")
			end = start.Add(time.Duration(days) * 24 * time.Hour)
		}
	} else {
		days := viper.GetInt("days")
		start = now
		end = now.Add(time.Duration(days) * 24 * time.Hour)
	}

	return core.TimeWindow{Start: start, End: end}, nil
}

func printEvent(event core.Event) {
	indent := "  "
	fmt.Println()
	fmt.Printf("%s%s\n", indent, event.Title)
	fmt.Printf("%s📅 Calendar:    %s (%s)\n", indent, event.Calendar.Name, event.Provider.DisplayName())
	fmt.Printf("%s🕐 When:        %s\n", indent, formatEventTime(event))
	if !event.IsAllDay {
		fmt.Printf("%s⏱️  Duration:    %s\n", indent, formatDurationCompact(event.Duration()))
	}
	if event.Location != "" {
		fmt.Printf("%s📍 Location:    %s\n", indent, event.Location)
	}
	if event.Description != "" {
		fmt.Printf("%s📝 Description: %s\n", indent, truncate(event.Description, 80))
	}
	if event.URL != "" {
		fmt.Printf("%s🔗 Event:       %s\n", indent, util.MakeHyperlink(event.URL, event.URL))
	}
	if event.InProgress(time.Now()) {
		remaining := time.Until(event.End)
		fmt.Printf("%s🟢 IN PROGRESS (%s remaining)\n", indent, formatDurationCompact(remaining))
	}
}

func formatEventTime(event core.Event) string {
	if event.IsAllDay {
		if event.StartDate == event.EndDate {
			return event.StartDate + " (all day)"
		}
		return fmt.Sprintf("%s - %s (all day)", event.StartDate, event.EndDate)
	}

	localStart := event.Start.Local()
	localEnd := event.End.Local()
	if localStart.Day() == localEnd.Day() {
		return fmt.Sprintf("%s, %s - %s", localStart.Format("Mon, Jan 2"), localStart.Format("3:04 PM"), localEnd.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s", localStart.Format("Mon, Jan 2 3:04 PM"), localEnd.Format("Mon, Jan 2 3:04 PM"))
}

// formatDurationCompact formats a duration in a compact way
func formatDurationCompact(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// parseDate parses a date string in various formats
// Supports: YYYY-MM-DD, "today", "tomorrow", "yesterday", weekday names
func parseDate(s string, defaultTime time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}

	// Handle "next <weekday>"
	dayName := strings.TrimPrefix(s, "next ")
	if wd, ok := weekdays[dayName]; ok {
		daysUntil := int(wd - today.Weekday())
		if daysUntil <= 0 {
			daysUntil += 7
		}
		return today.AddDate(0, 0, daysUntil), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("01-02", s, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0), nil
	}
	if t, err := time.ParseInLocation("01/02/2006", s, now.Location()); err == nil {
		return t, nil
	}

	return defaultTime, fmt.Errorf("unable to parse date: %s (use YYYY-MM-DD, 'today', 'tomorrow', or weekday names)", s)
}
