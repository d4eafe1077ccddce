package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage configuration profiles",
	Long: `Manage configuration profiles for different accounts and presets.

Profiles let you switch between app credentials and display settings,
e.g. a work profile with your company's Azure app and a personal one
on Google.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileSetDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSetDefault,
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a profile's settings",
	Long: `Edit a profile's settings using flags.

Example:
  calbridge profile edit work --days=14 --default-provider=outlook
  calbridge profile edit personal --google-client-id=<id>`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileEdit,
}

// profileFlags maps flag names to the config keys a profile stores.
var profileFlags = map[string]string{
	"default-provider":     "provider",
	"days":                 "days",
	"license-key":          "license_key",
	"google-client-id":     "google.client_id",
	"google-client-secret": "google.client_secret",
	"outlook-client-id":    "outlook.client_id",
	"outlook-tenant-id":    "outlook.tenant_id",
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileSetDefaultCmd)
	profileCmd.AddCommand(profileEditCmd)

	for _, c := range []*cobra.Command{profileAddCmd, profileEditCmd} {
		c.Flags().String("default-provider", "", "Provider this profile targets (google or outlook)")
		c.Flags().Int("days", 0, "Number of days to show")
		c.Flags().String("license-key", "", "License key unlocking the built-in app credentials")
		c.Flags().String("google-client-id", "", "Google OAuth client ID")
		c.Flags().String("google-client-secret", "", "Google OAuth client secret")
		c.Flags().String("outlook-client-id", "", "Azure app client ID")
		c.Flags().String("outlook-tenant-id", "", "Azure tenant ID (default: common)")
	}
}

func runProfileList(cmd *cobra.Command, args []string) error {
	profiles := viper.GetStringMap("profiles")
	defaultProfile := viper.GetString("default_profile")

	if len(profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("\nAdd one with: calbridge profile add <name>")
		return nil
	}

	fmt.Println("Available profiles:")
	fmt.Println("─────────────────────────────────────────────────")

	for name := range profiles {
		marker := "  "
		if name == defaultProfile {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, name)
	}

	fmt.Println("─────────────────────────────────────────────────")
	if defaultProfile != "" {
		fmt.Printf("Default: %s\n", defaultProfile)
	}
	fmt.Println("\nUse 'calbridge profile show <name>' for details")

	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	var profileName string
	if len(args) > 0 {
		profileName = args[0]
	} else {
		profileName = viper.GetString("default_profile")
		if profileName == "" {
			return fmt.Errorf("no profile specified and no default profile set")
		}
	}

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	values := viper.GetStringMap(profileKey)

	fmt.Printf("Profile: %s\n", profileName)
	if profileName == viper.GetString("default_profile") {
		fmt.Println("(default)")
	}
	fmt.Println("─────────────────────────────────────────────────")

	fmt.Println("\n📁 Provider:")
	printSetting(values, "provider", "default-provider")
	printSetting(values, "license_key", "license-key")

	if google, ok := values["google"].(map[string]interface{}); ok {
		fmt.Println("\n🔑 Google:")
		printSetting(google, "client_id", "client-id")
		printSetting(google, "client_secret", "client-secret")
	}
	if outlook, ok := values["outlook"].(map[string]interface{}); ok {
		fmt.Println("\n🔑 Outlook:")
		printSetting(outlook, "client_id", "client-id")
		printSetting(outlook, "tenant_id", "tenant-id")
	}

	fmt.Println("\n📅 Display:")
	printSetting(values, "days", "days")

	fmt.Println()
	return nil
}

func printSetting(values map[string]interface{}, key, displayKey string) {
	if val, ok := values[key]; ok {
		fmt.Printf("  %s: %v\n", displayKey, val)
	}
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' already exists. Use 'calbridge profile edit %s' to modify it", profileName, profileName)
	}

	values := profileValuesFromFlags(cmd, map[string]interface{}{})
	if len(values) == 0 {
		return fmt.Errorf("no settings given; use flags like --default-provider=google")
	}

	if err := saveProfileToConfig(profileName, values); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("✓ Profile '%s' created\n", profileName)
	fmt.Printf("\nUse it with: calbridge -p %s\n", profileName)
	fmt.Printf("Set as default: calbridge profile default %s\n", profileName)

	return nil
}

func runProfileSetDefault(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	if err := setDefaultProfileInConfig(profileName); err != nil {
		return fmt.Errorf("failed to set default profile: %w", err)
	}

	fmt.Printf("✓ Default profile set to '%s'\n", profileName)
	return nil
}

func runProfileEdit(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found. Use 'calbridge profile add %s' to create it", profileName, profileName)
	}

	if !anyProfileFlagChanged(cmd) {
		fmt.Println("No changes specified. Use flags to update settings:")
		fmt.Println("  calbridge profile edit", profileName, "--days=14")
		return nil
	}

	existing := viper.GetStringMap(profileKey)
	values := make(map[string]interface{}, len(existing))
	for k, v := range existing {
		values[k] = v
	}
	values = profileValuesFromFlags(cmd, values)

	if err := saveProfileToConfig(profileName, values); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("✓ Profile '%s' updated\n", profileName)
	return nil
}

// profileValuesFromFlags folds changed flags into the profile map,
// nesting dotted keys ("google.client_id") one level deep the way the
// config file stores them.
func profileValuesFromFlags(cmd *cobra.Command, values map[string]interface{}) map[string]interface{} {
	set := func(key string, val interface{}) {
		for i := 0; i < len(key); i++ {
			if key[i] == '.' {
				parent, child := key[:i], key[i+1:]
				nested, ok := values[parent].(map[string]interface{})
				if !ok {
					nested = map[string]interface{}{}
				}
				nested[child] = val
				values[parent] = nested
				return
			}
		}
		values[key] = val
	}

	for flag, key := range profileFlags {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		if flag == "days" {
			val, _ := cmd.Flags().GetInt(flag)
			set(key, val)
		} else {
			val, _ := cmd.Flags().GetString(flag)
			set(key, val)
		}
	}
	return values
}

func anyProfileFlagChanged(cmd *cobra.Command) bool {
	for flag := range profileFlags {
		if cmd.Flags().Changed(flag) {
			return true
		}
	}
	return false
}

// Config file manipulation functions

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "calbridge", "config.yaml")
}

func readConfigFile() (map[string]interface{}, error) {
	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config == nil {
		config = make(map[string]interface{})
	}

	return config, nil
}

func writeConfigFile(config map[string]interface{}) error {
	configPath := getConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

func saveProfileToConfig(name string, profile map[string]interface{}) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}

	profiles, ok := config["profiles"].(map[string]interface{})
	if !ok {
		profiles = make(map[string]interface{})
	}

	profiles[name] = profile
	config["profiles"] = profiles

	return writeConfigFile(config)
}

func setDefaultProfileInConfig(name string) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}

	config["default_profile"] = name

	return writeConfigFile(config)
}
