package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rally-hq/rally/internal/report"
)

var checkSystemCmd = &cobra.Command{
	Use:   "check-system",
	Short: "Show CPU information and recommended thread counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec := report.RecommendThreads(runtime.NumCPU())
		fmt.Fprint(cmd.OutOrStdout(), report.RenderSystem(rec, runtime.GOOS, runtime.GOARCH))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkSystemCmd)
}
