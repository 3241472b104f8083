// Package cmd holds the rally command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rally-hq/rally/internal/config"
	"github.com/rally-hq/rally/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "rally",
	Short: "Adaptive vote scheduler",
	Long: `Rally keeps a poll entry ahead by submitting votes on an adaptive
schedule. Votes come faster the longer the target has been behind, parallel
workers join as the deficit grows, and backoff stretches the delays once the
target holds a comfortable lead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ErrorMessage returns the line to print for an error that ended a command.
// Rally errors not marked user-facing are replaced by a generic message;
// their details are in the log.
func ErrorMessage(err error) string {
	var rallyErr errors.RallyError
	if errors.As(err, &rallyErr) && !errors.IsUserFacing(err) {
		return "internal error (rerun with --verbose for details)"
	}
	return err.Error()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/rally/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RALLY")
	// Replace dots with underscores for nested keys in env vars
	// e.g., RALLY_VOTING_MAX_THREADS for voting.max_threads
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig loads and validates the configuration, reporting problems as
// a configuration error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func configError(err error) error {
	var cfgErr *errors.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return errors.NewConfigurationError("invalid configuration", err)
}
