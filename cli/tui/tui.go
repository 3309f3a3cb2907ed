package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// View names accepted by Run.
const (
	ViewInspectMailbox = "inspect_mailbox"
	ViewStatsHistory   = "stats_history"
)

// Run opens the full-screen view for data.
func Run(view string, data any, opts ...Option) error {
	var model tea.Model
	switch view {
	case ViewInspectMailbox:
		model = NewInspectModel(data, opts...)
	case ViewStatsHistory:
		model = NewStatsModel(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", view)
	}
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether view has a TUI. Only read-only views do.
func IsTUISupported(view string) bool {
	return slices.Contains(SupportedTUIViews(), view)
}

// SupportedTUIViews lists the views with a TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectMailbox, ViewStatsHistory}
}
