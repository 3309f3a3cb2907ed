package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	courierlode "github.com/pithecene-io/courier/lode"
)

// StatsModel shows per-query lookup history with totals on top.
type StatsModel struct {
	stats    []courierlode.QueryStats
	table    table.Model
	err      error
	quitting bool
}

// NewStatsModel creates a stats model for a []lode.QueryStats.
func NewStatsModel(data any) StatsModel {
	stats, ok := data.([]courierlode.QueryStats)
	if !ok {
		return StatsModel{err: fmt.Errorf("invalid data type %T for %s", data, ViewStatsHistory)}
	}

	rows := make([]table.Row, len(stats))
	for i, s := range stats {
		rows[i] = table.Row{
			s.Query,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Profiles),
			strconv.Itoa(s.Errors),
			topReason(s.Reasons),
			s.LastSeen.Format("2006-01-02 15:04"),
		}
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Query", Width: 24},
			{Title: "Total", Width: 7},
			{Title: "Profiles", Width: 9},
			{Title: "Errors", Width: 7},
			{Title: "Top Reason", Width: 20},
			{Title: "Last Seen", Width: 17},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(accentColor)
	styles.Selected = styles.Selected.Bold(true).Foreground(accentColor)
	t.SetStyles(styles)

	return StatsModel{stats: stats, table: t}
}

// topReason returns the most frequent error reason, ties broken by name.
func topReason(reasons map[string]int) string {
	best, n := "", 0
	for r, c := range reasons {
		if c > n || (c == n && r < best) {
			best, n = r, c
		}
	}
	return best
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return ErrorStyle.Render(m.err.Error())
	}

	var total, profiles, errs int
	for _, s := range m.stats {
		total += s.Total
		profiles += s.Profiles
		errs += s.Errors
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Lookup History"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Queries", len(m.stats), accentColor),
		statBox("Lookups", total, accentColor),
		statBox("Profiles", profiles, okColor),
		statBox("Errors", errs, badColor),
	))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ scroll • q quit"))
	return b.String()
}

func statBox(label string, value int, color lipgloss.TerminalColor) string {
	v := StatValueStyle.Foreground(color).Render(strconv.Itoa(value))
	l := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, v, l))
}
