// Package tui provides Bubble Tea views for the courier CLI.
//
// Views are opt-in (--tui) and read-only. They show the same payloads as
// the json, table and yaml renderers and nothing more.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/courier/mailbox"
)

// Palette. Adaptive colors keep text legible on light terminals too.
var (
	accentColor  = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	okColor      = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	warnColor    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	badColor     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	textColor   = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(20)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(okColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warnColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(badColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// Stat boxes line up side by side in the history view.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			Width(16).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor)
)

// ResponderStyle colors a responder liveness label.
func ResponderStyle(state string) lipgloss.Style {
	switch state {
	case mailbox.ResponderAlive:
		return SuccessStyle
	case mailbox.ResponderStale:
		return WarningStyle
	case mailbox.ResponderMissing:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// countStyle highlights non-zero counts that need attention.
func countStyle(n int, alarm lipgloss.Style) lipgloss.Style {
	if n > 0 {
		return alarm
	}
	return ValueStyle
}

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}
