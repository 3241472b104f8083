package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rally-hq/rally/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View rally configuration",
	Long: `View rally configuration.

Without arguments, displays the effective configuration: defaults, then the
config file, then RALLY_* environment variables.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/rally/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return configError(err)
	}

	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}
	for _, e := range cfg.Validate() {
		fmt.Fprintf(out, "# invalid: %s\n", e.Error())
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// defaultConfigContent is written by config init.
const defaultConfigContent = `# Rally Configuration

voting:
  # Entry to keep ahead (required). Matched case-insensitively.
  target: ""
  # Workers running at startup
  start_threads: 1
  # Upper bound on concurrent workers
  max_threads: 8
  # Lead in percentage points above which backoff grows (reloaded live)
  lead_threshold: 15.0
  # Keep parallel workers once started, even when ahead
  force_parallel: false
  # Store the leading entries with every vote record
  save_top_results: false
  top_results_count: 5
  # Pause after a failed attempt
  failure_delay_seconds: 5
  # Upper bound on one attempt
  attempt_timeout_seconds: 120
  # Delay randomizer seed; 0 picks one per run
  seed: 0

voter:
  # Program run once per attempt; it must print
  # {"success": true, "results": [{"name": "...", "percent": 12.5}]}
  # as the last line of its output.
  command: ""
  args: []
  # Use the built-in poll simulation instead of command
  simulate: false
  simulate_competitors: []

activity_log:
  path: voting_activity.json

logging:
  # debug, info, warn or error (reloaded live)
  level: info
  # Where debug.log goes; empty means stderr, or the state directory while
  # the live view is shown
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false

metrics:
  # Prometheus listen address, e.g. ":9090"; empty disables
  addr: ""

tracing:
  # OTLP gRPC collector; empty disables
  endpoint: ""
  insecure: false

tui:
  enabled: true
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: RALLY_* (e.g., RALLY_VOTING_MAX_THREADS)")
	return nil
}
