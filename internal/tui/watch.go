package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikoraes/formalink/internal/coordinator"
)

// maxListedTasks caps the pending task list.
const maxListedTasks = 10

// StatusFetcher returns the bridge's current snapshot.
type StatusFetcher func(ctx context.Context) (coordinator.Status, error)

// StatusMsg carries the result of one poll.
type StatusMsg struct {
	Status coordinator.Status
	Err    error
	At     time.Time
}

type pollMsg struct{}

// WatchModel polls the bridge and shows a spinner while it is busy.
type WatchModel struct {
	fetch    StatusFetcher
	interval time.Duration
	target   string

	spinner  spinner.Model
	status   coordinator.Status
	err      error
	polled   time.Time
	received bool
	width    int

	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	busyStyle  lipgloss.Style
	idleStyle  lipgloss.Style
	errStyle   lipgloss.Style
	dimStyle   lipgloss.Style
}

// NewWatchModel creates a model polling fetch every interval. target is shown
// in the title.
func NewWatchModel(fetch StatusFetcher, interval time.Duration, target string) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return WatchModel{
		fetch:    fetch,
		interval: interval,
		target:   target,
		spinner:  sp,
		width:    80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),
		labelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18),
		busyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		idleStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		dimStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Init starts the spinner and the first poll.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m WatchModel) poll() tea.Cmd {
	fetch := m.fetch
	timeout := m.interval * 4
	if timeout < time.Second {
		timeout = time.Second
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := fetch(ctx)
		return StatusMsg{Status: status, Err: err, At: time.Now()}
	}
}

func (m WatchModel) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Update handles polls, key presses and spinner ticks.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case pollMsg:
		return m, m.poll()
	case StatusMsg:
		m.polled = msg.At
		m.err = msg.Err
		if msg.Err == nil {
			m.status = msg.Status
			m.received = true
		}
		return m, m.schedule()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Status returns the last successfully polled snapshot.
func (m WatchModel) Status() coordinator.Status {
	return m.status
}

// View renders the bridge state.
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Width(m.width).Render("formalink " + m.target))
	b.WriteString("\n")

	switch {
	case !m.received && m.err == nil:
		b.WriteString(m.spinner.View() + " connecting...")
	case m.status.Busy:
		b.WriteString(m.spinner.View() + " " + m.busyStyle.Render("busy"))
	default:
		b.WriteString("● " + m.idleStyle.Render("idle"))
	}
	b.WriteString("\n\n")

	s := m.status
	m.row(&b, "Version:", s.Version)
	m.row(&b, "Pending requests:", fmt.Sprintf("%d", len(s.PendingRequests)))
	m.row(&b, "Pending tasks:", fmt.Sprintf("%d", len(s.PendingTasks)))
	m.row(&b, "Completed:", fmt.Sprintf("%d (%d failed)", s.Completed+s.Failed, s.Failed))
	m.row(&b, "Rejected:", fmt.Sprintf("%d", s.Rejected))
	if s.UnknownTasks > 0 || s.UnknownRequests > 0 {
		m.row(&b, "Unknown ids:", m.errStyle.Render(fmt.Sprintf("%d tasks, %d requests", s.UnknownTasks, s.UnknownRequests)))
	}

	if len(s.PendingTasks) > 0 {
		b.WriteString("\n")
		for i, id := range s.PendingTasks {
			if i == maxListedTasks {
				b.WriteString(m.dimStyle.Render(fmt.Sprintf("  ... %d more", len(s.PendingTasks)-maxListedTasks)))
				b.WriteString("\n")
				break
			}
			b.WriteString("  " + id + "\n")
		}
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	footer := "q to quit"
	if !m.polled.IsZero() {
		footer = fmt.Sprintf("updated %s  %s", m.polled.Format("15:04:05"), footer)
	}
	b.WriteString(m.dimStyle.Render(footer))
	b.WriteString("\n")

	return b.String()
}

func (m WatchModel) row(b *strings.Builder, label, value string) {
	b.WriteString(m.labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

// RunWatch runs the watch view until the user quits.
func RunWatch(fetch StatusFetcher, interval time.Duration, target string) error {
	_, err := tea.NewProgram(NewWatchModel(fetch, interval, target)).Run()
	return err
}
