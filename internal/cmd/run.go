package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/rally-hq/rally/internal/config"
	"github.com/rally-hq/rally/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start voting",
	Long: `Start a voting session for the configured target.

The session runs until interrupted (Ctrl+C, SIGTERM or q in the status
view). In-flight votes are allowed to finish, the activity log is written
and the final statistics are printed.`,
	RunE: runRun,
}

var runNoTUI bool

func init() {
	f := runCmd.Flags()
	f.StringP("target", "t", "", "entry to keep ahead")
	f.Int("start-threads", 1, "workers running at startup")
	f.Int("max-threads", 8, "upper bound on concurrent workers")
	f.Float64("lead-threshold", 15.0, "lead in points above which backoff grows")
	f.Bool("force-parallel", false, "keep parallel workers once started")
	f.Bool("save-top-results", false, "store the leading entries with every record")
	f.String("log-file", "voting_activity.json", "activity log path")
	f.Bool("simulate", false, "vote against a built-in poll simulation")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.Uint64("seed", 0, "delay randomizer seed (0 = random)")
	f.BoolVar(&runNoTUI, "no-tui", false, "print logs instead of the live status view")

	bindFlags(runCmd, map[string]string{
		"voting.target":           "target",
		"voting.start_threads":    "start-threads",
		"voting.max_threads":      "max-threads",
		"voting.lead_threshold":   "lead-threshold",
		"voting.force_parallel":   "force-parallel",
		"voting.save_top_results": "save-top-results",
		"voting.seed":             "seed",
		"activity_log.path":       "log-file",
		"voter.simulate":          "simulate",
		"metrics.addr":            "metrics-addr",
	})

	rootCmd.AddCommand(runCmd)
}

// bindFlags binds config keys to the command's flags. A flag only
// overrides the config file when it is set.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	liveView := cfg.TUI.Enabled && !runNoTUI && term.IsTerminal(int(os.Stdout.Fd()))

	orch, err := orchestrator.New(cmd.Context(), orchestrator.Options{
		Config:        cfg,
		Verbose:       viper.GetBool("verbose"),
		LiveView:      liveView,
		HandleSignals: true,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	logger := orch.Logger()
	config.Watch(orch.ApplyConfig, func(err error) {
		logger.Warn("ignoring invalid config change", "error", err)
	})

	return orch.Run(cmd.Context())
}
