// Package util provides text helpers shared by the terminal renderers.
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// Escape codes and wide characters are measured correctly, so styled
// strings can be passed as-is.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, "...")
}

// PadANSI pads s with spaces to width visual columns. Longer strings are
// truncated with TruncateANSI.
func PadANSI(s string, width int) string {
	w := ansi.StringWidth(s)
	if w > width {
		return TruncateANSI(s, width)
	}
	return s + strings.Repeat(" ", width-w)
}

// FormatDuration renders d the way the status view and report show
// delays and run times: "45s", "3m05s", "2h04m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
