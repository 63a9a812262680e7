package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

// LoadFunc reads the latest state of the watched run.
type LoadFunc func(ctx context.Context) (*supervisor.State, error)

type watchKeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var watchKeys = watchKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

type stateMsg struct {
	state *supervisor.State
	err   error
	at    time.Time
}

type tickMsg time.Time

// WatchModel polls a run's checkpoint and renders its status until the run
// is DONE or the user quits.
type WatchModel struct {
	ctx      context.Context
	load     LoadFunc
	interval time.Duration
	spinner  spinner.Model
	styles   Styles

	state    *supervisor.State
	err      error
	updated  time.Time
	quitting bool
}

// NewWatchModel creates a watch that reloads every interval.
func NewWatchModel(ctx context.Context, load LoadFunc, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	styles := DefaultStyles()
	s.Style = styles.Status
	return WatchModel{ctx: ctx, load: load, interval: interval, spinner: s, styles: styles}
}

func (m WatchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		st, err := m.load(m.ctx)
		return stateMsg{state: st, err: err, at: time.Now()}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the spinner and the first load.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Update handles keys, reloads and spinner frames.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, watchKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, watchKeys.Refresh):
			return m, m.fetch()
		}
		return m, nil

	case stateMsg:
		m.updated = msg.at
		m.err = msg.err
		if msg.state != nil {
			m.state = msg.state
		}
		if m.Finished() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.tick()

	case tickMsg:
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Finished reports whether the watched run is DONE.
func (m WatchModel) Finished() bool {
	return m.state != nil && m.state.ProjectStatus == domain.PStatusDone
}

// State returns the last loaded state.
func (m WatchModel) State() *supervisor.State { return m.state }

// View renders the status table with a spinner while the run is active.
func (m WatchModel) View() string {
	var b strings.Builder
	switch {
	case m.state == nil && m.err == nil:
		fmt.Fprintf(&b, "%s loading run...\n", m.spinner.View())
	case m.state != nil:
		b.WriteString(RenderStatus(m.state, m.styles))
		b.WriteString("\n")
		if !m.Finished() {
			fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.styles.Muted.Render("updated "+since(m.updated)+" ago"))
		}
	}
	if m.err != nil {
		b.WriteString(m.styles.Error.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	}
	if !m.quitting {
		b.WriteString(m.styles.Help.Render(fmt.Sprintf("%s: %s • %s: %s",
			watchKeys.Refresh.Help().Key, watchKeys.Refresh.Help().Desc,
			watchKeys.Quit.Help().Key, watchKeys.Quit.Help().Desc)))
	}
	return b.String()
}

// RunWatch runs the watch until the run finishes or the user quits, and
// returns the last loaded state.
func RunWatch(ctx context.Context, load LoadFunc, interval time.Duration) (*supervisor.State, error) {
	program := tea.NewProgram(NewWatchModel(ctx, load, interval), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("running status watch: %w", err)
	}
	m, ok := final.(WatchModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type: %T", final)
	}
	return m.state, m.err
}
