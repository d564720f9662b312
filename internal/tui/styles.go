package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/spiffcs/staticmap/internal/task"
)

var (
	// Status icons
	iconPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")
	iconComplete  = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("✓")
	iconError     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	iconCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("⊘")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	coordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	taskNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	taskDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			PaddingLeft(2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)

// StatusIcon returns the icon for a fetch in the given state.
func StatusIcon(state task.State, spinnerFrame string) string {
	switch state {
	case task.Running:
		return spinnerStyle.Render(spinnerFrame)
	case task.OK:
		return iconComplete
	case task.Error, task.Interrupted:
		return iconError
	case task.Cancelled:
		return iconCancelled
	default:
		return iconPending
	}
}

// outcomeStyle colours an outcome line by final state.
func outcomeStyle(state task.State) lipgloss.Style {
	switch state {
	case task.OK:
		return okStyle
	case task.Cancelled:
		return warnStyle
	case task.Error, task.Interrupted:
		return errorStyle
	default:
		return messageStyle
	}
}
