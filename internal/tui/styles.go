package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan

	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorInfo    = lipgloss.Color("#3B82F6") // Blue

	ColorText      = lipgloss.Color("#E5E7EB") // Light gray
	ColorTextMuted = lipgloss.Color("#9CA3AF") // Muted gray
	ColorBorder    = lipgloss.Color("#374151") // Dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	stepStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	roleStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	infoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)
