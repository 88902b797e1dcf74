package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/viewer"
	"github.com/loganalyzer/logview/pkg/viewport"
)

const statusDuration = 3 * time.Second

// updateSearch handles keys while the search bar is open. The query is
// applied as it is typed; esc restores the previous one.
func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter:
		m.closeSearch()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.viewer.SetQueryText(m.prevQuery)
		m.closeSearch()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMode):
		m.viewer.ToggleSearchMode()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.viewer.Query().Text {
		m.viewer.SetQueryText(m.search.Value())
	}
	return m, cmd
}

func (m *Model) closeSearch() {
	m.searchActive = false
	m.search.Blur()
	m.layout()
}

// layout gives the viewer what is left after the header, footer and search bar
func (m *Model) layout() {
	chrome := 2
	if m.searchActive {
		chrome++
	}
	height := m.height - chrome
	if height < 1 {
		height = 1
	}
	m.viewer.Resize(m.width, height)
}

// setStatusMessage sets a temporary status message
func (m *Model) setStatusMessage(message string) {
	m.statusMessage = message
	m.statusTimeout = time.Now().Add(statusDuration)
}

func stateColor(theme highlighter.Theme, state viewer.State) lipgloss.Color {
	switch state {
	case viewer.StateSubscribed:
		return theme.Color("level_info")
	case viewer.StateConnecting, viewer.StateConnected:
		return theme.Color("level_warn")
	case viewer.StateError:
		return theme.Color("level_error")
	default:
		return theme.Color("gutter")
	}
}

// renderHeader renders the title, the subscription and the connection state
func (m *Model) renderHeader(f viewer.Frame) string {
	title := f.Title
	if title == "" {
		title = "Logs"
	}
	left := lipgloss.NewStyle().Bold(true).Padding(0, 1).Render(title)
	if !f.Key.IsZero() {
		left += lipgloss.NewStyle().Foreground(f.Theme.Color("gutter")).Render(f.Key.String())
	}
	if f.Fullscreen {
		left += " [FULLSCREEN]"
	}

	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(stateColor(f.Theme, f.State)).
		Padding(0, 1).
		Render(strings.ToUpper(f.State.String()))

	spacing := m.width - lipgloss.Width(left) - lipgloss.Width(badge)
	if spacing < 1 {
		spacing = 1
	}
	return left + strings.Repeat(" ", spacing) + badge
}

// renderLines paints the visible lines onto the screen surface. The window
// already picked them, so the surface never holds more than one page.
func (m *Model) renderLines(f viewer.Frame) string {
	m.screen.Width = m.width
	m.screen.Height = f.Height

	if len(f.Lines) == 0 {
		m.screen.SetContent(m.emptyMessage(f))
		return m.screen.View()
	}

	opts := f.PaintOptions()
	lines := make([]string, 0, len(f.Lines))
	for _, line := range f.Lines {
		lines = append(lines, viewport.Paint(line, m.width, opts))
	}
	m.screen.SetContent(strings.Join(lines, "\n"))
	m.screen.GotoTop()
	return m.screen.View()
}

func (m *Model) emptyMessage(f viewer.Frame) string {
	switch {
	case f.Key.IsZero():
		return "No subscription. Start with --account, --cluster and --tracking-id."
	case f.Mode == models.ViewMatches && f.Total > 0:
		return "No matching lines. Press tab to show all lines."
	case f.State == viewer.StateError:
		return "Not connected."
	default:
		return "Waiting for logs..."
	}
}

// renderSearchBar renders the search input with its mode
func (m *Model) renderSearchBar(f viewer.Frame) string {
	mode := lipgloss.NewStyle().Foreground(f.Theme.Color("gutter")).Render(fmt.Sprintf(" [%s]", f.Query.Mode))
	bar := m.search.View() + mode
	if f.QueryError != nil {
		bar += " " + lipgloss.NewStyle().Foreground(f.Theme.Color("level_error")).Render(f.QueryError.Error())
	}
	return bar
}

// renderFooter renders the status bar
func (m *Model) renderFooter(f viewer.Frame) string {
	style := lipgloss.NewStyle().
		Background(lipgloss.Color("#333333")).
		Foreground(lipgloss.Color("#ffffff")).
		Padding(0, 1)

	leftParts := []string{
		fmt.Sprintf("%02d matches", f.Matches),
		fmt.Sprintf("%s/%s lines", humanize.Comma(int64(f.Displayed)), humanize.Comma(int64(f.Total))),
	}
	if f.Mode == models.ViewMatches {
		leftParts = append(leftParts, "[MATCHES]")
	}
	if f.Following {
		leftParts = append(leftParts, "[FOLLOW]")
	} else {
		leftParts = append(leftParts, "[PAUSED]")
	}
	if f.Dropped > 0 {
		leftParts = append(leftParts, fmt.Sprintf("%s dropped", humanize.Comma(int64(f.Dropped))))
	}
	if f.Error != "" {
		leftParts = append(leftParts, "Error: "+f.Error)
	}
	if m.statusMessage != "" && time.Now().Before(m.statusTimeout) {
		leftParts = append(leftParts, m.statusMessage)
	}

	leftSide := strings.Join(leftParts, " | ")
	rightSide := m.help.ShortHelpView(m.keys.ShortHelp())

	spacing := m.width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if spacing < 1 {
		return style.Width(m.width).Render(leftSide)
	}
	return style.Width(m.width).Render(leftSide + strings.Repeat(" ", spacing) + rightSide)
}

// renderHelp renders the help screen
func (m *Model) renderHelp() string {
	content := "logview - Help\n\n" + m.help.FullHelpView(m.keys.FullHelp()) + `

SEARCH:
  fuzzy      words are matched separately, all must match
  regex      Go regular expression, invalid patterns match nothing
  field:val  restrict to source (pod) or container; field:=val exact, field:!val exclude

Press esc or ? to close help.`

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#00ffff")).
		Padding(1, 2)

	return style.Width(m.width - 4).Render(content)
}
