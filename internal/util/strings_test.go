package util

import (
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{name: "short plain string unchanged", input: "Main", maxWidth: 10, want: "Main"},
		{name: "plain string truncated", input: "Parallel-12 voting", maxWidth: 8, want: "Paral..."},
		{name: "very small maxWidth returns ellipsis", input: "hello", maxWidth: 3, want: "..."},
		{name: "styled string preserved when it fits", input: red.Render("hi"), maxWidth: 10, want: red.Render("hi")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateANSI(tt.input, tt.maxWidth)
			if got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}

	styled := TruncateANSI(red.Render("hello world"), 8)
	if w := lipgloss.Width(styled); w > 8 {
		t.Errorf("styled truncation width = %d, want <= 8", w)
	}
}

func TestPadANSI(t *testing.T) {
	bold := lipgloss.NewStyle().Bold(true)

	if got := PadANSI("ab", 5); got != "ab   " {
		t.Errorf("PadANSI plain = %q", got)
	}
	if w := lipgloss.Width(PadANSI(bold.Render("ab"), 5)); w != 5 {
		t.Errorf("PadANSI styled width = %d, want 5", w)
	}
	if w := lipgloss.Width(PadANSI("abcdefghij", 6)); w > 6 {
		t.Errorf("PadANSI long width = %d, want <= 6", w)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{1400 * time.Millisecond, "1s"},
		{45 * time.Second, "45s"},
		{185 * time.Second, "3m05s"},
		{2*time.Hour + 4*time.Minute + 30*time.Second, "2h04m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
