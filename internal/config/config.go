package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete rally configuration
type Config struct {
	Voting      VotingConfig      `mapstructure:"voting" yaml:"voting"`
	Voter       VoterConfig       `mapstructure:"voter" yaml:"voter"`
	ActivityLog ActivityLogConfig `mapstructure:"activity_log" yaml:"activity_log"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing"`
	TUI         TUIConfig         `mapstructure:"tui" yaml:"tui"`
}

// VotingConfig controls the scheduler: who to vote for, how many workers may
// run and when backoff kicks in.
type VotingConfig struct {
	// Target is the entry name whose standing drives the scheduler.
	// Matching is case-insensitive after trimming whitespace.
	Target string `mapstructure:"target" yaml:"target"`
	// StartThreads is the number of workers running at startup (default: 1).
	// Values above 1 pre-seed the behind count so the extra workers are
	// justified by the scaling thresholds from the first vote.
	StartThreads int `mapstructure:"start_threads" yaml:"start_threads"`
	// MaxThreads caps the number of concurrent workers (default: 8)
	MaxThreads int `mapstructure:"max_threads" yaml:"max_threads"`
	// LeadThreshold is the lead, in percentage points, above which the
	// backoff multiplier grows (default: 15.0). Reloaded live.
	LeadThreshold float64 `mapstructure:"lead_threshold" yaml:"lead_threshold"`
	// ForceParallel keeps parallel workers alive once started, even after the
	// target pulls ahead (default: false)
	ForceParallel bool `mapstructure:"force_parallel" yaml:"force_parallel"`
	// SaveTopResults stores the leading entries with every vote record (default: false)
	SaveTopResults bool `mapstructure:"save_top_results" yaml:"save_top_results"`
	// TopResultsCount is how many entries SaveTopResults keeps (default: 5)
	TopResultsCount int `mapstructure:"top_results_count" yaml:"top_results_count"`
	// FailureDelaySeconds is the sleep after a failed attempt (default: 5)
	FailureDelaySeconds int `mapstructure:"failure_delay_seconds" yaml:"failure_delay_seconds"`
	// AttemptTimeoutSeconds bounds a single vote attempt (default: 120)
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds" yaml:"attempt_timeout_seconds"`
	// Seed seeds the delay randomizer. 0 picks a random seed per run.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// VoterConfig selects how a single vote is performed
type VoterConfig struct {
	// Command is the program run once per attempt. It must print a JSON
	// result on stdout.
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed to Command unchanged
	Args []string `mapstructure:"args" yaml:"args"`
	// Simulate replaces Command with an in-process poll simulation
	Simulate bool `mapstructure:"simulate" yaml:"simulate"`
	// SimulateCompetitors names the other entries in the simulated poll
	SimulateCompetitors []string `mapstructure:"simulate_competitors" yaml:"simulate_competitors"`
}

// ActivityLogConfig controls the persisted vote history
type ActivityLogConfig struct {
	// Path is the JSON file holding the summary and every vote record
	// (default: "voting_activity.json")
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where debug.log is written. Empty means the state directory
	// when the live view owns the terminal, stderr otherwise.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables tracing.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Insecure disables TLS to the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
}

// TUIConfig controls the live status view
type TUIConfig struct {
	// Enabled shows the live per-worker view when stdout is a terminal (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Voting: VotingConfig{
			StartThreads:          1,
			MaxThreads:            8,
			LeadThreshold:         15.0,
			TopResultsCount:       5,
			FailureDelaySeconds:   5,
			AttemptTimeoutSeconds: 120,
		},
		Voter: VoterConfig{
			Args:                []string{},
			SimulateCompetitors: []string{},
		},
		ActivityLog: ActivityLogConfig{
			Path: "voting_activity.json",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// FailureDelay returns the failure delay as a time.Duration
func (c *VotingConfig) FailureDelay() time.Duration {
	return time.Duration(c.FailureDelaySeconds) * time.Second
}

// AttemptTimeout returns the attempt timeout as a time.Duration
func (c *VotingConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Voting defaults
	viper.SetDefault("voting.target", defaults.Voting.Target)
	viper.SetDefault("voting.start_threads", defaults.Voting.StartThreads)
	viper.SetDefault("voting.max_threads", defaults.Voting.MaxThreads)
	viper.SetDefault("voting.lead_threshold", defaults.Voting.LeadThreshold)
	viper.SetDefault("voting.force_parallel", defaults.Voting.ForceParallel)
	viper.SetDefault("voting.save_top_results", defaults.Voting.SaveTopResults)
	viper.SetDefault("voting.top_results_count", defaults.Voting.TopResultsCount)
	viper.SetDefault("voting.failure_delay_seconds", defaults.Voting.FailureDelaySeconds)
	viper.SetDefault("voting.attempt_timeout_seconds", defaults.Voting.AttemptTimeoutSeconds)
	viper.SetDefault("voting.seed", defaults.Voting.Seed)

	// Voter defaults
	viper.SetDefault("voter.command", defaults.Voter.Command)
	viper.SetDefault("voter.args", defaults.Voter.Args)
	viper.SetDefault("voter.simulate", defaults.Voter.Simulate)
	viper.SetDefault("voter.simulate_competitors", defaults.Voter.SimulateCompetitors)

	// Activity log defaults
	viper.SetDefault("activity_log.path", defaults.ActivityLog.Path)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Observability defaults
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
	viper.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	viper.SetDefault("tracing.insecure", defaults.Tracing.Insecure)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Watch re-reads the config file whenever it changes and hands the result to
// apply. Invalid edits are passed to onError and the previous values stay in
// effect. It is a no-op when no config file was loaded.
func Watch(apply func(*Config), onError func(error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		apply(cfg)
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rally")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rally"
	}
	return filepath.Join(home, ".config", "rally")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns where run-time files such as debug.log live
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "rally")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rally"
	}
	return filepath.Join(home, ".local", "state", "rally")
}

// ResolveLogDir returns the directory debug.log should be written to, or ""
// for stderr. An explicit logging.dir always wins; otherwise logs go to the
// state directory only while the live view is drawing on the terminal.
func (c *LoggingConfig) ResolveLogDir(liveView bool) string {
	if c.Dir != "" {
		return c.Dir
	}
	if liveView {
		return StateDir()
	}
	return ""
}
