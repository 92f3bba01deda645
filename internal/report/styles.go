package report

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#06B6D4")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#94A3B8")
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	status  lipgloss.Style
	errText lipgloss.Style
	block   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Foreground(colorSuccess).Bold(true),
		label:   r.NewStyle().Foreground(colorAccent).Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted).Italic(true),
		status:  r.NewStyle().Foreground(colorAccent),
		errText: r.NewStyle().Foreground(colorError).Bold(true),
		block:   r.NewStyle().Foreground(colorMuted),
	}
}
