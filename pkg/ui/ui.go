package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	bubblesviewport "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/logging"
	"github.com/loganalyzer/logview/pkg/viewer"
)

// Model represents the main TUI model
type Model struct {
	viewer *viewer.Viewer
	keys   KeyMap
	help   help.Model
	screen bubblesviewport.Model // surface for the visible lines only

	// UI State
	width    int
	height   int
	ready    bool
	quitting bool
	showHelp bool

	// Search
	search       textinput.Model
	searchActive bool
	prevQuery    string

	// Status
	statusMessage string
	statusTimeout time.Time
	status        <-chan logging.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// ChangeMsg is sent when the viewer has something new to show
type ChangeMsg struct{}

// StatusMsg carries a log entry worth showing in the status bar
type StatusMsg logging.Entry

// ConfigMsg carries a reloaded configuration
type ConfigMsg struct {
	Config *config.Config
	Err    error
}

// NewModel creates the TUI over v. Warnings read from status, if not nil,
// are shown in the status bar.
func NewModel(ctx context.Context, v *viewer.Viewer, cfg *config.Config, status <-chan logging.Entry) *Model {
	ctx, cancel := context.WithCancel(ctx)

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search logs"
	search.CharLimit = 256

	return &Model{
		viewer: v,
		keys:   NewKeyMap(cfg),
		help:   help.New(),
		screen: bubblesviewport.New(0, 0),
		search: search,
		status: status,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init implements the bubbletea.Model interface
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.listenForChanges(),
		m.listenForStatus(),
	)
}

// Update implements the bubbletea.Model interface
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		m.layout()

	case tea.KeyMsg:
		if m.searchActive {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			m.viewer.ScrollUp(3)
		case tea.MouseWheelDown:
			m.viewer.ScrollDown(3)
		}

	case ChangeMsg:
		return m, m.listenForChanges()

	case StatusMsg:
		m.setStatusMessage(msg.Message)
		return m, m.listenForStatus()

	case ConfigMsg:
		if msg.Err != nil {
			m.setStatusMessage(fmt.Sprintf("Config reload failed: %v", msg.Err))
			return m, nil
		}
		m.viewer.SetTheme(msg.Config.UI.Theme)
		m.viewer.SetRules(msg.Config.HighlightRules)
		m.keys = NewKeyMap(msg.Config)
		m.setStatusMessage("Configuration reloaded")
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.Escape):
		m.showHelp = false

	case key.Matches(msg, m.keys.Search):
		if !m.viewer.Options().EnableSearch {
			m.setStatusMessage("Search is disabled")
			return m, nil
		}
		m.searchActive = true
		m.prevQuery = m.viewer.Query().Text
		m.search.SetValue(m.prevQuery)
		m.search.CursorEnd()
		m.layout()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.ToggleView):
		m.viewer.ToggleViewMode()

	case key.Matches(msg, m.keys.ToggleMode):
		m.viewer.ToggleSearchMode()
		m.setStatusMessage(fmt.Sprintf("Search mode: %s", m.viewer.Query().Mode))

	case key.Matches(msg, m.keys.ToggleFollow):
		m.viewer.ToggleFollow()

	case key.Matches(msg, m.keys.Fullscreen):
		m.viewer.ToggleFullscreen()

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewer.ScrollDown(1)

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewer.ScrollUp(1)

	case key.Matches(msg, m.keys.PageDown):
		m.viewer.PageDown()

	case key.Matches(msg, m.keys.PageUp):
		m.viewer.PageUp()

	case key.Matches(msg, m.keys.Top):
		m.viewer.Top()

	case key.Matches(msg, m.keys.Bottom):
		m.viewer.Bottom()

	case key.Matches(msg, m.keys.ToggleNumbers):
		m.viewer.ToggleLineNumbers()

	case key.Matches(msg, m.keys.ToggleTimestamp):
		m.viewer.ToggleTimestamps()
	}
	return m, nil
}

// View implements the bubbletea.Model interface
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.quitting {
		return "Shutting down...\n"
	}

	if m.showHelp {
		return m.renderHelp()
	}

	frame := m.viewer.Frame()

	sections := []string{m.renderHeader(frame), m.renderLines(frame)}
	if m.searchActive {
		sections = append(sections, m.renderSearchBar(frame))
	}
	sections = append(sections, m.renderFooter(frame))

	return strings.Join(sections, "\n")
}

// listenForChanges waits for the viewer to change
func (m *Model) listenForChanges() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.viewer.Changes():
			return ChangeMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// listenForStatus waits for the next warning worth showing
func (m *Model) listenForStatus() tea.Cmd {
	if m.status == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case entry := <-m.status:
			return StatusMsg(entry)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Stop releases the listeners
func (m *Model) Stop() {
	m.cancel()
}
