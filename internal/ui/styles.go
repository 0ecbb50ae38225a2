// ABOUTME: Lipgloss styles for the player TUI
// ABOUTME: Colors and borders shared by the view
package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7571F9")
	colorMuted   = lipgloss.Color("#606060")
	colorText    = lipgloss.Color("#A0A0A0")
	colorWarn    = lipgloss.Color("#F25D94")

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorText).Width(8)
	valueStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	keyStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)
