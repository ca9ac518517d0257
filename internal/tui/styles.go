package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#7B68EE")
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorBorder  = lipgloss.Color("#3A3A5C")
	colorTitle   = lipgloss.Color("#C4B5FD")
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	stylePanelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTitle)

	styleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorAccent)
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim   = lipgloss.NewStyle().Foreground(colorMuted)
	styleLabel = lipgloss.NewStyle().Foreground(colorMuted).Width(18)
	styleHint  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	styleKey   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)

var styleStatusBar = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(0, 1)

func yesNo(ok bool, yes, no string) string {
	if ok {
		return styleOK.Render(yes)
	}
	return styleErr.Render(no)
}
