package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rally-hq/rally/internal/activitylog"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Work with activity logs",
}

var logMergeCmd = &cobra.Command{
	Use:   "merge <output> <input>...",
	Short: "Merge activity logs into one",
	Long: `Merge activity logs written by separate runs or machines.

Summaries are added key by key and records are ordered by timestamp. The
inputs are left untouched; the output is replaced atomically.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLogMerge,
}

var logMergeForce bool

func init() {
	logMergeCmd.Flags().BoolVarP(&logMergeForce, "force", "f", false, "overwrite an existing output file")
	logCmd.AddCommand(logMergeCmd)
	rootCmd.AddCommand(logCmd)
}

func runLogMerge(cmd *cobra.Command, args []string) error {
	output, inputs := args[0], args[1:]

	if _, err := os.Stat(output); err == nil && !logMergeForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	merged, err := activitylog.MergeFiles(inputs...)
	if err != nil {
		return err
	}

	// Hold the lock so a running session cannot write over the result.
	lock := activitylog.NewFileLock(output)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", output, err)
	}
	if !ok {
		return fmt.Errorf("%s is in use by a running session", output)
	}
	defer lock.Unlock()

	if err := activitylog.WriteAtomic(output, merged); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d logs into %s (%d records)\n", len(inputs), output, len(merged.Records))
	return nil
}
