package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/courier/mailbox"
)

// Refresher takes a fresh census.
type Refresher func() (*mailbox.Census, error)

// Option configures the inspect view.
type Option func(*InspectModel)

// WithRefresh re-takes the census every interval and on the refresh key.
func WithRefresh(fn Refresher, interval time.Duration) Option {
	return func(m *InspectModel) {
		m.refresh = fn
		m.interval = interval
	}
}

// InspectModel shows a mailbox census.
type InspectModel struct {
	census   *mailbox.Census
	err      error
	refresh  Refresher
	interval time.Duration
	updated  time.Time
	quitting bool
}

type censusMsg struct {
	census *mailbox.Census
	err    error
	at     time.Time
}

type tickMsg struct{}

// NewInspectModel creates an inspect model for a *mailbox.Census.
func NewInspectModel(data any, opts ...Option) InspectModel {
	m := InspectModel{updated: time.Now()}
	if c, ok := data.(*mailbox.Census); ok {
		m.census = c
	} else {
		m.err = fmt.Errorf("invalid data type %T for %s", data, ViewInspectMailbox)
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return m.tick()
}

func (m InspectModel) tick() tea.Cmd {
	if m.refresh == nil || m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m InspectModel) take() tea.Cmd {
	fn := m.refresh
	return func() tea.Msg {
		c, err := fn()
		return censusMsg{census: c, err: err, at: time.Now()}
	}
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh) && m.refresh != nil:
			return m, m.take()
		}

	case tickMsg:
		return m, m.take()

	case censusMsg:
		m.err = msg.err
		if msg.census != nil {
			m.census = msg.census
		}
		m.updated = msg.at
		return m, m.tick()
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if m.census != nil {
		b.WriteString(renderCensus(m.census))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
	}

	help := "q quit"
	if m.refresh != nil {
		help = fmt.Sprintf("r refresh • q quit • updated %s", m.updated.Format("15:04:05"))
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(help))
	return b.String()
}

func renderCensus(c *mailbox.Census) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Mailbox"))
	b.WriteString("\n")

	row := func(label string, value string, style lipgloss.Style) {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(label+":"), style.Render(value))
	}

	row("Root", c.Root, ValueStyle)
	row("Responder", c.Responder, ResponderStyle(c.Responder))
	if c.HeartbeatAge != "" {
		row("Heartbeat Age", c.HeartbeatAge, ValueStyle)
	}
	row("Pending Requests", strconv.Itoa(c.PendingRequests), countStyle(c.PendingRequests, WarningStyle))
	if c.OldestRequestAge != "" {
		row("Oldest Request", c.OldestRequestAge, ValueStyle)
	}
	row("Responses", strconv.Itoa(c.Responses), ValueStyle)
	row("Orphan Responses", strconv.Itoa(c.OrphanResponses), countStyle(c.OrphanResponses, ErrorStyle))
	row("Temp Files", strconv.Itoa(c.TempFiles), ValueStyle)
	row("Other Files", strconv.Itoa(c.OtherFiles), ValueStyle)

	if hb := c.Heartbeat; hb != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Responder Process"))
		b.WriteString("\n")
		row("PID", fmt.Sprintf("%d@%s", hb.PID, hb.Hostname), ValueStyle)
		row("Started", hb.StartedAt.Format("2006-01-02 15:04:05"), ValueStyle)
		row("In Flight", strconv.FormatInt(hb.InFlight, 10), ValueStyle)
		row("Responded", strconv.FormatInt(hb.Responded, 10), SuccessStyle)
		row("Rejected", strconv.FormatInt(hb.Rejected, 10), countStyle(int(hb.Rejected), WarningStyle))
		row("Failed", strconv.FormatInt(hb.Failed, 10), countStyle(int(hb.Failed), ErrorStyle))
	}

	if len(c.Orphans) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Orphans:"))
		b.WriteString("\n")
		for _, name := range c.Orphans {
			fmt.Fprintf(&b, "  • %s\n", ValueStyle.Render(name))
		}
	}

	return BoxStyle.Render(b.String())
}

// RenderInspectStatic renders the census once, without a program.
func RenderInspectStatic(c *mailbox.Census) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(renderCensus(c))
}
