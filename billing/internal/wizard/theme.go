package wizard

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("#16A34A") // green-600
	colorSecondary = lipgloss.Color("#0EA5E9") // sky-500
	colorWarning   = lipgloss.Color("#F59E0B") // amber
	colorSubtle    = lipgloss.Color("#9CA3AF") // gray-400
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	noteStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	successStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)
