package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF0000")
	colorGreen   = lipgloss.Color("#00FF00")
	colorYellow  = lipgloss.Color("#FFFF00")
	colorCyan    = lipgloss.Color("#00FFFF")
	colorGray    = lipgloss.Color("#666666")
	colorDimGray = lipgloss.Color("#444444")
	colorMagenta = lipgloss.Color("#FF00FF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	playingStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Bold(true)

	classStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	confirmedStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	resetStyle = lipgloss.NewStyle().
			Foreground(colorMagenta)

	cooldownStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	barFillStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	barFullStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)
