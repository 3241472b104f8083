package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rally-hq/rally/internal/bench"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/report"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure throughput at several worker counts",
	Long: `Run the scheduler against the built-in poll simulation once per worker
count and compare votes per minute.

Delays are compressed by --scale: with the default of 60, ten simulated
minutes take ten seconds. Durations and latency are given in simulated time.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

var (
	benchThreads     []int
	benchDuration    time.Duration
	benchScale       float64
	benchSeed        uint64
	benchLatency     time.Duration
	benchFailureRate float64
	benchRejectRate  float64
)

func init() {
	f := benchCmd.Flags()
	f.IntSliceVar(&benchThreads, "threads", []int{1, 2, 4}, "worker counts to compare")
	f.DurationVar(&benchDuration, "duration", 10*time.Minute, "simulated time per run")
	f.Float64Var(&benchScale, "scale", 60, "time compression factor")
	f.Uint64Var(&benchSeed, "seed", 1, "simulation seed")
	f.DurationVar(&benchLatency, "latency", 8*time.Second, "simulated time per vote")
	f.Float64Var(&benchFailureRate, "failure-rate", 0.05, "share of attempts that fail")
	f.Float64Var(&benchRejectRate, "reject-rate", 0.02, "share of attempts the poll rejects")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	target := viper.GetString("voting.target")
	if target == "" {
		target = "Target"
	}

	level := logging.LevelWarn
	if viper.GetBool("verbose") {
		level = logging.LevelDebug
	}
	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), level)

	results, err := bench.Run(cmd.Context(), benchThreads, bench.Options{
		Target:      target,
		Competitors: viper.GetStringSlice("voter.simulate_competitors"),
		Duration:    benchDuration,
		Scale:       benchScale,
		Seed:        benchSeed,
		Latency:     benchLatency,
		FailureRate: benchFailureRate,
		RejectRate:  benchRejectRate,
		Logger:      logger,
	})
	if len(results) > 0 {
		fmt.Fprint(cmd.OutOrStdout(), report.RenderBench(results))
	}
	return err
}
