package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPass    = lipgloss.Color("#22C55E")
	colorWarn    = lipgloss.Color("#EAB308")
	colorFail    = lipgloss.Color("#EF4444")
	colorPending = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#4A9EFF")
	colorDim     = lipgloss.Color("#9CA3AF")
	colorWhite   = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorDim)

	categoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorDim)

	verdictBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1).
			MarginTop(1)

	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPass)
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	pendingStyle = lipgloss.NewStyle().Foreground(colorPending)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)
