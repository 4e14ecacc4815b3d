package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary   = lipgloss.Color("#4ECDC4")
	Secondary = lipgloss.Color("#6C757D")
	TextMuted = lipgloss.Color("#888888")
	ErrorRed  = lipgloss.Color("#FF6B6B")
	UserBlue  = lipgloss.Color("#FFB347")
)

// Styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(UserBlue)

	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary)

	ActionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorRed).
			Padding(0, 1)

	InputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Secondary)
)
