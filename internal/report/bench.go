package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rally-hq/rally/internal/tui/styles"
	"github.com/rally-hq/rally/internal/util"
)

// diminishingReturns is the throughput gain, in percent, below which adding
// workers is flagged as not worth it.
const diminishingReturns = 10.0

// BenchResult is the outcome of one benchmark run at a fixed worker count.
// Durations are simulated time.
type BenchResult struct {
	Threads   int
	Duration  time.Duration
	Attempts  int64
	Votes     int64
	Failures  int64
	PerWorker map[string]int64
}

// SuccessRate is the share of attempts that produced a counted vote.
func (r BenchResult) SuccessRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Votes) / float64(r.Attempts) * 100
}

// VotesPerMinute is the overall throughput.
func (r BenchResult) VotesPerMinute() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Votes) / r.Duration.Minutes()
}

// VotesPerThreadPerMinute is the throughput of an average worker.
func (r BenchResult) VotesPerThreadPerMinute() float64 {
	if r.Threads == 0 {
		return 0
	}
	return r.VotesPerMinute() / float64(r.Threads)
}

// Recommend returns the run with the highest throughput among those with at
// least a 90% success rate.
func Recommend(results []BenchResult) (BenchResult, bool) {
	var best BenchResult
	found := false
	for _, r := range results {
		if r.SuccessRate() < 90 || r.VotesPerThreadPerMinute() <= 0 {
			continue
		}
		if !found || r.VotesPerMinute() > best.VotesPerMinute() {
			best, found = r, true
		}
	}
	return best, found
}

// RenderBench renders one comparison table, the diminishing returns
// analysis and the recommended worker count.
func RenderBench(results []BenchResult) string {
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b BenchResult) int { return a.Threads - b.Threads })

	var b strings.Builder
	b.WriteString(styles.Title.Render("Benchmark"))
	b.WriteString("\n\n")

	header := util.PadANSI("WORKERS", 10) + util.PadANSI("DURATION", 10) + util.PadANSI("VOTES", 8) +
		util.PadANSI("FAILED", 8) + util.PadANSI("VOTES/MIN", 12) + util.PadANSI("PER WORKER", 12) + "SUCCESS"
	lines := []string{styles.Header.Render(header)}
	for _, r := range sorted {
		lines = append(lines, util.PadANSI(fmt.Sprintf("%d", r.Threads), 10)+
			util.PadANSI(util.FormatDuration(r.Duration), 10)+
			util.PadANSI(fmt.Sprintf("%d", r.Votes), 8)+
			util.PadANSI(fmt.Sprintf("%d", r.Failures), 8)+
			util.PadANSI(fmt.Sprintf("%.2f", r.VotesPerMinute()), 12)+
			util.PadANSI(fmt.Sprintf("%.2f", r.VotesPerThreadPerMinute()), 12)+
			fmt.Sprintf("%.1f%%", r.SuccessRate()))
	}
	b.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.VotesPerMinute() <= 0 || cur.Threads <= prev.Threads {
			continue
		}
		gain := (cur.VotesPerMinute() - prev.VotesPerMinute()) / prev.VotesPerMinute() * 100
		line := fmt.Sprintf("%d -> %d workers: %+.1f%% votes/min", prev.Threads, cur.Threads, gain)
		if gain < diminishingReturns {
			b.WriteString(styles.Warning.Render(line + " (diminishing returns)"))
		} else {
			b.WriteString(styles.Secondary.Render(line))
		}
		b.WriteString("\n")
	}

	if best, ok := Recommend(sorted); ok {
		b.WriteString("\n")
		b.WriteString(styles.Header.Render(fmt.Sprintf("Recommended: --max-threads %d", best.Threads)))
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  %.2f votes/min, %.1f%% success", best.VotesPerMinute(), best.SuccessRate())))
		b.WriteString("\n")
	}
	return b.String()
}
