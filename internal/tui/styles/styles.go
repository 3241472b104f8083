// Package styles holds the colors and lipgloss styles shared by the live
// status view and the final report.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Worker status colors
	StatusVoting   = lipgloss.Color("#10B981") // Green
	StatusSleeping = lipgloss.Color("#60A5FA") // Blue
	StatusStopping = lipgloss.Color("#F59E0B") // Amber
	StatusStopped  = lipgloss.Color("#9CA3AF") // Gray
	StatusFailed   = lipgloss.Color("#F87171") // Red

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(22)

	Value = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	Help = lipgloss.NewStyle().
		Foreground(MutedColor)
)

// StatusColor returns the color for a worker status label.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "voting":
		return StatusVoting
	case "sleeping":
		return StatusSleeping
	case "stopping":
		return StatusStopping
	case "retrying":
		return StatusFailed
	default:
		return StatusStopped
	}
}

// TierColor returns the color used for a timing tier name. Faster tiers get
// warmer colors.
func TierColor(tier string) lipgloss.Color {
	switch tier {
	case "SuperAccelerated":
		return ErrorColor
	case "Accelerated":
		return WarningColor
	case "InitialAccelerated":
		return BlueColor
	default:
		return SecondaryColor
	}
}
