package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#8BC34A"}
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#E53935")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6A737D", Dark: "#8B949E"}
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	// Stage renders stage and table names.
	Stage lipgloss.Style
	Pass  lipgloss.Style
	Fail  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so color output
// follows the destination writer's profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(colorPrimary).Underline(true),
		Header2: r.NewStyle().Bold(true).Foreground(colorPrimary),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Success: r.NewStyle().Foreground(colorSuccess),
		Warning: r.NewStyle().Foreground(colorWarning),
		Error:   r.NewStyle().Foreground(colorError),
		Info:    r.NewStyle().Foreground(colorInfo),
		Stage:   r.NewStyle().Foreground(colorInfo),
		Pass:    r.NewStyle().Bold(true).Foreground(colorSuccess),
		Fail:    r.NewStyle().Bold(true).Foreground(colorError),
	}
}
