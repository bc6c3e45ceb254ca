// Package tui provides a Bubble Tea terminal user interface for the
// ERA5 fetcher.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ealonsogzl/era5-fetcher/internal/cds"
	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/fetch"
	"github.com/ealonsogzl/era5-fetcher/internal/model"
	"github.com/ealonsogzl/era5-fetcher/internal/planner"
	"github.com/rs/zerolog"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateConfirm State = iota
	StateFetching
	StateComplete
	StateError
)

// LogEntry represents a progress message in the UI.
type LogEntry struct {
	Message string
	Level   fetch.ProgressLevel
}

// logBuffer collects progress events from the manager's workers until
// the next UI tick drains them.
type logBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (b *logBuffer) add(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
}

func (b *logBuffer) drain() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.entries
	b.entries = nil
	return entries
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	spinner  spinner.Model
	progress progress.Model
	settings *config.Settings

	satisfied model.Plan
	pending   model.Plan
	logs      []LogEntry
	buffer    *logBuffer
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	manager *fetch.Manager

	fetched int32
	total   int32

	width  int
	height int
}

// NewModel plans the retrieval and partitions it against the
// filesystem, leaving the model waiting for confirmation (or already
// complete when nothing is missing).
func NewModel(settings *config.Settings, client cds.Retriever, log zerolog.Logger) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:    StateConfirm,
		spinner:  sp,
		progress: prog,
		settings: settings,
		buffer:   &logBuffer{},
		ctx:      ctx,
		cancel:   cancel,
	}

	buffer := m.buffer
	m.manager = fetch.NewManager(settings, client, log, func(event fetch.ProgressEvent) {
		buffer.add(LogEntry{Message: event.Message, Level: event.Level})
	})

	plan, err := planner.Build(settings)
	if err != nil {
		m.state = StateError
		m.err = err
		return m
	}

	m.satisfied, m.pending = m.manager.Annotate(plan)
	if len(m.pending) == 0 {
		m.state = StateComplete
	}

	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Message types
type (
	// FetchDoneMsg is sent when the worker pool has drained.
	FetchDoneMsg struct {
		Err error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "y", "enter":
			if m.state == StateConfirm {
				m.state = StateFetching
				return m, tea.Batch(m.startFetch(), m.tickProgress(), m.spinner.Tick)
			}

		case "n", "esc":
			if m.state == StateConfirm {
				m.state = StateError
				m.err = model.ErrDeclined
				return m, nil
			}
			if m.state == StateFetching {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "q":
			if m.state != StateFetching {
				m.cancel()
				return m, tea.Quit
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case FetchDoneMsg:
		m.fetched, m.total = m.manager.Progress()
		m.logs = append(m.logs, m.buffer.drain()...)
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateFetching {
			m.fetched, m.total = m.manager.Progress()
			m.logs = append(m.logs, m.buffer.drain()...)
			// Keep only the last 10 log lines
			if len(m.logs) > 10 {
				m.logs = m.logs[len(m.logs)-10:]
			}

			var percent float64
			if m.total > 0 {
				percent = float64(m.fetched) / float64(m.total)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startFetch runs the worker pool in the background.
func (m *Model) startFetch() tea.Cmd {
	manager, ctx, pending := m.manager, m.ctx, m.pending
	return func() tea.Msg {
		return FetchDoneMsg{Err: manager.Run(ctx, pending)}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ERA5 Fetcher"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"%s forcing, %s to %s, %d workers",
		strings.ToUpper(string(m.settings.Kind)), m.settings.StartDate, m.settings.EndDate, m.settings.Concurrency,
	)))
	b.WriteString("\n\n")

	switch m.state {
	case StateConfirm:
		b.WriteString(m.viewConfirm())
	case StateFetching:
		b.WriteString(m.viewFetching())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewConfirm() string {
	var b strings.Builder

	if len(m.satisfied) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found on disk (%d):", len(m.satisfied))))
		b.WriteString("\n")
		for _, name := range m.satisfied.Names() {
			b.WriteString(fileStyle.Render("  " + name))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(warningStyle.Render(fmt.Sprintf("To download (%d):", len(m.pending))))
	b.WriteString("\n")
	for _, name := range m.pending.Names() {
		b.WriteString(fileStyle.Render("  " + name))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Download these files from the archive?"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewFetching() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching monthly files..."))
	b.WriteString("\n\n")

	var percent float64
	if m.total > 0 {
		percent = float64(m.fetched) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Files: %d/%d", m.fetched, m.total)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	return boxStyle.Render(fmt.Sprintf(
		"Retrieval complete\n\n"+
			"Already present: %d\n"+
			"Downloaded: %d\n"+
			"Directory: %s",
		len(m.satisfied),
		m.fetched,
		m.settings.OutputDir,
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "*"
		switch log.Level {
		case fetch.LevelError:
			style = errorStyle
			prefix = "x"
		case fetch.LevelWarning:
			style = warningStyle
			prefix = "!"
		case fetch.LevelSuccess:
			style = successStyle
			prefix = "+"
		case fetch.LevelInfo:
			style = subtitleStyle
			prefix = ">"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateConfirm:
		return "y/enter: download - n/esc: decline - ctrl+c: quit"
	case StateFetching:
		return "esc: cancel"
	case StateComplete, StateError:
		return "q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(settings *config.Settings, client cds.Retriever, log zerolog.Logger) error {
	p := tea.NewProgram(NewModel(settings, client, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
