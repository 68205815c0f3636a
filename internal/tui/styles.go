package tui

import "github.com/charmbracelet/lipgloss"

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")) // cyan

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	launcherStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("6")).Foreground(lipgloss.Color("0"))

	userPrefixStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	sourceStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta
)
