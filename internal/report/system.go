package report

import (
	"fmt"
	"strings"

	"github.com/rally-hq/rally/internal/tui/styles"
)

// ThreadRecommendations are the suggested max thread counts for a machine.
type ThreadRecommendations struct {
	Logical      int
	Conservative int
	Moderate     int
	Aggressive   int
}

// RecommendThreads derives thread counts from the number of logical CPUs.
func RecommendThreads(logical int) ThreadRecommendations {
	if logical < 1 {
		logical = 1
	}
	return ThreadRecommendations{
		Logical:      logical,
		Conservative: logical,
		Moderate:     logical * 3 / 2,
		Aggressive:   logical * 2,
	}
}

// Oversubscribed reports whether maxThreads exceeds the aggressive count.
func (r ThreadRecommendations) Oversubscribed(maxThreads int) bool {
	return maxThreads > r.Aggressive
}

// RenderSystem renders the check-system output.
func RenderSystem(r ThreadRecommendations, goos, goarch string) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("System"))
	b.WriteString("\n\n")
	b.WriteString(styles.Box.Render(table([][2]string{
		{"Platform", goos + "/" + goarch},
		{"Logical processors", fmt.Sprintf("%d", r.Logical)},
	})))
	b.WriteString("\n")
	b.WriteString(styles.Header.Render("Recommended thread counts"))
	b.WriteString("\n")
	b.WriteString(styles.Box.Render(table([][2]string{
		{"Conservative", fmt.Sprintf("--max-threads %d", r.Conservative)},
		{"Moderate", fmt.Sprintf("--max-threads %d", r.Moderate)},
		{"Aggressive", fmt.Sprintf("--max-threads %d", r.Aggressive)},
	})))
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(fmt.Sprintf(
		"Each browser instance uses roughly 200-500MB; %d workers need about %.1f-%.1fGB.",
		r.Conservative, float64(r.Conservative)*0.3, float64(r.Conservative)*0.5)))
	return b.String() + "\n"
}
