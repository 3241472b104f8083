// Package report renders session statistics, persisted summaries, benchmark
// results and system information for the terminal.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/tui/styles"
	"github.com/rally-hq/rally/internal/util"
)

// tierLabels names the summary keys for display.
var tierLabels = map[string]string{
	stats.KeyStandard:           "Standard",
	stats.KeyInitialAccelerated: "Initial accelerated",
	stats.KeyAccelerated:        "Accelerated",
	stats.KeySuperAccelerated:   "Super accelerated",
	stats.KeyBackoffVotes:       "Backoff votes",
	stats.KeyTotalVotes:         "Total votes",
}

// Session is everything the final statistics show.
type Session struct {
	SessionID string
	Target    string
	Started   time.Time
	Ended     time.Time
	// Counts are this process's counters.
	Counts stats.Snapshot
	// Overall is the persisted summary including this session, when an
	// activity log was written.
	Overall stats.Summary
	LogPath string
}

// Duration is how long the session ran.
func (s Session) Duration() time.Duration {
	if s.Ended.Before(s.Started) {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// RenderSession renders the final statistics printed on shutdown.
func RenderSession(s Session) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Voting statistics"))
	if s.Target != "" {
		b.WriteString(styles.Subtitle.Render("  " + s.Target))
	}
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Session", s.SessionID},
		{"Duration", util.FormatDuration(s.Duration())},
	}
	counters := s.Counts.Counters()
	for _, key := range stats.Keys {
		rows = append(rows, [2]string{tierLabels[key], fmt.Sprintf("%d", counters[key])})
	}
	rows = append(rows, [2]string{"Failed attempts", failures(s.Counts.FailedAttempts)})
	if rate, ok := successRate(s.Counts); ok {
		rows = append(rows, [2]string{"Success rate", fmt.Sprintf("%.1f%%", rate)})
	}
	b.WriteString(styles.Box.Render(table(rows)))

	if s.Overall != nil {
		b.WriteString("\n")
		b.WriteString(styles.Header.Render("All sessions"))
		if s.LogPath != "" {
			b.WriteString(styles.Subtitle.Render("  " + s.LogPath))
		}
		b.WriteString("\n")
		b.WriteString(summaryTable(s.Overall))
	}
	return b.String() + "\n"
}

// RenderSummary renders a persisted summary for the stats command.
func RenderSummary(path string, summary stats.Summary, records int) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Activity log"))
	b.WriteString(styles.Subtitle.Render("  " + path))
	b.WriteString("\n\n")
	b.WriteString(summaryTable(summary))
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(fmt.Sprintf("%d records", records)))
	return b.String() + "\n"
}

func summaryTable(summary stats.Summary) string {
	var rows [][2]string
	for _, key := range stats.Keys {
		rows = append(rows, [2]string{tierLabels[key], fmt.Sprintf("%d", summary.Get(key))})
	}
	for _, key := range extraKeys(summary) {
		rows = append(rows, [2]string{key, fmt.Sprintf("%d", summary[key])})
	}
	return styles.Box.Render(table(rows))
}

// extraKeys returns summary keys outside the standard set, sorted.
func extraKeys(summary stats.Summary) []string {
	known := make(map[string]bool, len(stats.Keys))
	for _, k := range stats.Keys {
		known[k] = true
	}
	var out []string
	for k := range summary {
		if !known[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func table(rows [][2]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, styles.Label.Render(r[0]), styles.Value.Render(r[1]))
	}
	return strings.Join(lines, "\n")
}

func failures(n int64) string {
	if n == 0 {
		return "0"
	}
	return styles.Error.Render(fmt.Sprintf("%d", n))
}

// successRate is the share of attempts that produced a counted vote.
func successRate(s stats.Snapshot) (float64, bool) {
	if s.Attempts == 0 {
		return 0, false
	}
	return float64(s.TotalVotes) / float64(s.Attempts) * 100, true
}
