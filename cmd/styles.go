package cmd

import "github.com/charmbracelet/lipgloss"

var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink
	sourceColor  = lipgloss.Color("#8BE9FD") // Cyan
	bodyColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(headerColor).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(sourceColor).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(bodyColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)
)
