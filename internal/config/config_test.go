package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Voting.StartThreads != 1 {
		t.Errorf("Voting.StartThreads = %d, want 1", cfg.Voting.StartThreads)
	}
	if cfg.Voting.MaxThreads != 8 {
		t.Errorf("Voting.MaxThreads = %d, want 8", cfg.Voting.MaxThreads)
	}
	if cfg.Voting.LeadThreshold != 15.0 {
		t.Errorf("Voting.LeadThreshold = %v, want 15.0", cfg.Voting.LeadThreshold)
	}
	if cfg.Voting.ForceParallel {
		t.Error("Voting.ForceParallel should be false by default")
	}
	if cfg.Voting.SaveTopResults {
		t.Error("Voting.SaveTopResults should be false by default")
	}
	if cfg.Voting.TopResultsCount != 5 {
		t.Errorf("Voting.TopResultsCount = %d, want 5", cfg.Voting.TopResultsCount)
	}
	if cfg.ActivityLog.Path != "voting_activity.json" {
		t.Errorf("ActivityLog.Path = %q, want voting_activity.json", cfg.ActivityLog.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.TUI.Enabled {
		t.Error("TUI.Enabled should be true by default")
	}
	if cfg.Metrics.Addr != "" || cfg.Tracing.Endpoint != "" {
		t.Error("metrics and tracing should be disabled by default")
	}
}

func TestVotingConfig_Durations(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 0},
		{5, 5 * time.Second},
		{120, 2 * time.Minute},
	}

	for _, tt := range tests {
		cfg := VotingConfig{FailureDelaySeconds: tt.seconds, AttemptTimeoutSeconds: tt.seconds}
		if got := cfg.FailureDelay(); got != tt.want {
			t.Errorf("FailureDelay() with %ds = %v, want %v", tt.seconds, got, tt.want)
		}
		if got := cfg.AttemptTimeout(); got != tt.want {
			t.Errorf("AttemptTimeout() with %ds = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/rally" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/rally")
		}
		if got := ConfigFile(); got != "/custom/config/rally/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		want := filepath.Join(home, ".config", "rally")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestResolveLogDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")

	tests := []struct {
		name     string
		dir      string
		liveView bool
		want     string
	}{
		{"explicit dir wins", "/var/log/rally", true, "/var/log/rally"},
		{"explicit dir without live view", "/var/log/rally", false, "/var/log/rally"},
		{"live view uses state dir", "", true, "/state/rally"},
		{"plain run logs to stderr", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoggingConfig{Dir: tt.dir}
			if got := cfg.ResolveLogDir(tt.liveView); got != tt.want {
				t.Errorf("ResolveLogDir(%v) = %q, want %q", tt.liveView, got, tt.want)
			}
		})
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func loadFile(t *testing.T, path string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
voting:
  target: Jane Doe
  start_threads: 3
  max_threads: 6
  lead_threshold: 20.5
voter:
  simulate: true
  simulate_competitors: [Alice, Bob]
`)
		loadFile(t, path)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if cfg.Voting.Target != "Jane Doe" {
			t.Errorf("Voting.Target = %q", cfg.Voting.Target)
		}
		if cfg.Voting.StartThreads != 3 || cfg.Voting.MaxThreads != 6 {
			t.Errorf("threads = %d/%d, want 3/6", cfg.Voting.StartThreads, cfg.Voting.MaxThreads)
		}
		if cfg.Voting.LeadThreshold != 20.5 {
			t.Errorf("Voting.LeadThreshold = %v, want 20.5", cfg.Voting.LeadThreshold)
		}
		if len(cfg.Voter.SimulateCompetitors) != 2 {
			t.Errorf("Voter.SimulateCompetitors = %v", cfg.Voter.SimulateCompetitors)
		}
		// Untouched keys keep their defaults.
		if cfg.Voting.AttemptTimeoutSeconds != 120 {
			t.Errorf("Voting.AttemptTimeoutSeconds = %d, want 120", cfg.Voting.AttemptTimeoutSeconds)
		}
	})

	t.Run("invalid values return ValidationErrors", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
voting:
  target: Jane Doe
  start_threads: 9
  max_threads: 8
voter:
  command: ./vote.sh
`)
		loadFile(t, path)

		_, err := Load()
		if err == nil {
			t.Fatal("Load() should fail when start_threads exceeds max_threads")
		}
		verrs, ok := err.(ValidationErrors)
		if !ok {
			t.Fatalf("Load() error = %T, want ValidationErrors", err)
		}
		if len(verrs) != 1 || verrs[0].Field != "voting.start_threads" {
			t.Errorf("unexpected validation errors: %v", verrs)
		}
	})
}

func TestGet_FallsBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	// No target configured, so Load fails validation and Get falls back.
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Voting.MaxThreads != 8 {
		t.Errorf("Get().Voting.MaxThreads = %d, want 8", cfg.Voting.MaxThreads)
	}
}

func TestWatch_AppliesLeadThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "voting:\n  target: Jane\n  lead_threshold: 15\nvoter:\n  simulate: true\n")
	loadFile(t, path)

	got := make(chan float64, 16)
	Watch(func(cfg *Config) { got <- cfg.Voting.LeadThreshold }, nil)

	// Replace atomically so the watcher never sees a half-written file.
	tmp := filepath.Join(dir, "config.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("voting:\n  target: Jane\n  lead_threshold: 30\nvoter:\n  simulate: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-got:
			if v == 30 {
				return
			}
		case <-deadline:
			t.Fatal("config change was not applied")
		}
	}
}
