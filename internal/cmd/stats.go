package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rally-hq/rally/internal/activitylog"
	"github.com/rally-hq/rally/internal/report"
	"github.com/rally-hq/rally/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats [activity-log]",
	Short: "Show the persisted voting summary",
	Long: `Display the summary stored in an activity log: votes per timing tier,
votes cast under backoff and the overall total.

The log defaults to activity_log.path from the configuration. It is read
without taking the lock, so stats works while a session is running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

var (
	statsJSON bool // Output as JSON
	statsYAML bool // Output as YAML
)

// statsOutput is the machine-readable form of the stats command.
type statsOutput struct {
	Path    string        `json:"path" yaml:"path"`
	Summary stats.Summary `json:"summary" yaml:"summary"`
	Records int           `json:"records" yaml:"records"`
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().BoolVar(&statsYAML, "yaml", false, "Output statistics as YAML")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsJSON && statsYAML {
		return fmt.Errorf("--json and --yaml cannot be used together")
	}

	path := viper.GetString("activity_log.path")
	if len(args) > 0 {
		path = args[0]
	}

	doc, err := activitylog.Read(path)
	if err != nil {
		return err
	}

	out := statsOutput{Path: path, Summary: doc.Summary, Records: len(doc.Records)}
	if out.Summary == nil {
		out.Summary = stats.Summary{}
	}

	w := cmd.OutOrStdout()
	switch {
	case statsJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case statsYAML:
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to encode statistics: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		fmt.Fprint(w, report.RenderSummary(out.Path, out.Summary, out.Records))
		return nil
	}
}
