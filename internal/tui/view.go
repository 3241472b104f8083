package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rally-hq/rally/internal/tui/styles"
	"github.com/rally-hq/rally/internal/util"
)

// Column widths of the worker table.
const (
	colWorker   = 12
	colStatus   = 10
	colVotes    = 7
	colFailures = 7
	colRank     = 16
	colTier     = 20
	colNext     = 8
)

// View renders the header, the worker table and recent activity.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderWorkers())
	b.WriteString("\n")
	b.WriteString(m.renderRecent())
	b.WriteString("\n")
	b.WriteString(styles.Help.Render("q: stop voting and print statistics"))
	return b.String()
}

func (m Model) renderHeader() string {
	title := fmt.Sprintf("%s rally: %s", m.spinner.View(), m.opts.Target)
	if m.opts.SessionID != "" {
		title += styles.Subtitle.Render("  session " + m.opts.SessionID)
	}

	lead := "-"
	if m.hasLead {
		lead = fmt.Sprintf("%+.2f", m.lead)
	}
	multiplier := styles.Secondary.Render(fmt.Sprintf("x%.2f", m.multiplier))
	if m.multiplier > 1 {
		multiplier = styles.Warning.Render(fmt.Sprintf("x%.2f", m.multiplier))
	}

	stats := strings.Join([]string{
		stat("behind", fmt.Sprintf("%d", m.behind)),
		stat("workers", fmt.Sprintf("%d/%d", m.active, m.opts.MaxThreads)),
		stat("lead", lead),
		"backoff " + multiplier,
		stat("votes", fmt.Sprintf("%d", m.votes)),
		stat("failed", fmt.Sprintf("%d", m.failures)),
		stat("up", util.FormatDuration(m.now.Sub(m.started))),
	}, "  ")

	return styles.Title.Render(util.TruncateANSI(title, m.width)) + "\n" + util.TruncateANSI(stats, m.width)
}

func stat(label, value string) string {
	return styles.Muted.Render(label+" ") + styles.Value.Render(value)
}

func (m Model) renderWorkers() string {
	header := styles.Header.Render(
		util.PadANSI("WORKER", colWorker) +
			util.PadANSI("STATUS", colStatus) +
			util.PadANSI("VOTES", colVotes) +
			util.PadANSI("FAILED", colFailures) +
			util.PadANSI("POSITION", colRank) +
			util.PadANSI("TIER", colTier) +
			util.PadANSI("NEXT", colNext))

	lines := []string{header}
	rows := m.rows()
	if len(rows) == 0 {
		lines = append(lines, styles.Muted.Render("waiting for workers..."))
	}
	for _, r := range rows {
		status := m.displayStatus(r)
		position := "-"
		if r.found {
			position = fmt.Sprintf("#%d %.2f%%", r.rank, r.percent)
		} else if r.votes > 0 || r.status == statusSleeping {
			position = styles.Error.Render("not found")
		}
		tier := "-"
		if r.votes > 0 || r.status == statusSleeping {
			tier = lipgloss.NewStyle().Foreground(styles.TierColor(r.tier.String())).Render(r.tier.String())
		}
		line := util.PadANSI(r.id, colWorker) +
			util.PadANSI(lipgloss.NewStyle().Foreground(styles.StatusColor(status)).Render(status), colStatus) +
			util.PadANSI(fmt.Sprintf("%d", r.votes), colVotes) +
			util.PadANSI(fmt.Sprintf("%d", r.failures), colFailures) +
			util.PadANSI(position, colRank) +
			util.PadANSI(tier, colTier) +
			util.PadANSI(m.countdown(r), colNext)
		lines = append(lines, util.TruncateANSI(line, m.width))
	}

	return styles.Box.Render(strings.Join(lines, "\n"))
}

// displayStatus shows a sleeping worker whose delay has elapsed as voting;
// no event marks the start of an attempt.
func (m Model) displayStatus(r *workerRow) string {
	if (r.status == statusSleeping || r.status == statusRetrying) && !r.nextAt.IsZero() && !m.now.Before(r.nextAt) {
		return statusVoting
	}
	return r.status
}

func (m Model) renderRecent() string {
	if len(m.recent) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.recent)+1)
	lines = append(lines, styles.Header.Render("Recent activity"))
	for _, l := range m.recent {
		lines = append(lines, styles.Muted.Render(util.TruncateANSI(l, m.width)))
	}
	return strings.Join(lines, "\n") + "\n"
}
