package ui

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/viewer"
	"github.com/sirupsen/logrus"
)

var testKey = models.SubscriptionKey{Account: "acme", Cluster: "prod", TrackingID: "web"}

func newTestModel(t *testing.T) (*Model, *viewer.Viewer) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := viewer.DefaultOptions()
	opts.Key = testKey
	opts.Logger = logger
	v := viewer.New(opts)

	v.Store().Bind(testKey)
	v.Store().AppendBatch([]models.LogRecord{
		{Key: testKey, SourceID: "web", Message: "ERROR failed to bind"},
		{Key: testKey, SourceID: "web", Message: "INFO ok"},
	})

	m := NewModel(context.Background(), v, config.DefaultConfig(), nil)
	t.Cleanup(m.Stop)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	return m, v
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeysDriveViewer(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		check func(v *viewer.Viewer) bool
	}{
		{"toggle view", "tab", func(v *viewer.Viewer) bool { return v.Frame().Mode == models.ViewMatches }},
		{"toggle mode", "ctrl+r", func(v *viewer.Viewer) bool { return v.Query().Mode == models.SearchRegex }},
		{"follow", "f", func(v *viewer.Viewer) bool { return !v.Frame().Following }},
		{"fullscreen", "z", func(v *viewer.Viewer) bool { return v.Fullscreen() }},
		{"line numbers", "l", func(v *viewer.Viewer) bool { return !v.Frame().ShowNumbers }},
		{"timestamps", "t", func(v *viewer.Viewer) bool { return !v.Frame().ShowTimestamp }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, v := newTestModel(t)
			m.Update(keyMsg(tt.key))
			if !tt.check(v) {
				t.Errorf("key %q had no effect", tt.key)
			}
		})
	}
}

func TestSearchInput(t *testing.T) {
	m, v := newTestModel(t)

	m.Update(keyMsg("/"))
	if !m.searchActive {
		t.Fatal("search bar did not open")
	}
	m.Update(keyMsg("error"))
	if got := v.Query().Text; got != "error" {
		t.Errorf("query while typing = %q", got)
	}
	m.Update(keyMsg("enter"))
	if m.searchActive {
		t.Error("enter should close the search bar")
	}

	// typing q in the search bar is text, not quit
	m.Update(keyMsg("/"))
	m.Update(keyMsg("q"))
	if m.quitting {
		t.Fatal("q quit while searching")
	}
	m.Update(keyMsg("esc"))
	if got := v.Query().Text; got != "error" {
		t.Errorf("esc should restore the query, got %q", got)
	}
}

func TestStatusBar(t *testing.T) {
	m, v := newTestModel(t)
	v.SetQueryText("error")

	view := m.View()
	for _, want := range []string{"01 matches", "2/2 lines", "[FOLLOW]", "acme/prod/web"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m.Update(keyMsg("tab"))
	if view := m.View(); !strings.Contains(view, "1/2 lines") {
		t.Errorf("matches view should show one of two lines:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quit should cancel the listeners")
	}
}

func TestConfigReload(t *testing.T) {
	m, v := newTestModel(t)

	cfg := config.DefaultConfig()
	cfg.UI.Theme = "light"
	cfg.Keybindings["quit"] = "x"
	m.Update(ConfigMsg{Config: cfg})

	if got := v.Frame().Theme.Name; got != "light" {
		t.Errorf("theme = %q, want light", got)
	}
	_, cmd := m.Update(keyMsg("x"))
	if cmd == nil {
		t.Error("rebound quit key ignored")
	}
}

func TestLinesFillWindow(t *testing.T) {
	m, v := newTestModel(t)

	f := v.Frame()
	out := m.renderLines(f)
	if got := strings.Count(out, "\n") + 1; got != f.Height {
		t.Errorf("rendered %d rows, want %d", got, f.Height)
	}
	if !strings.Contains(out, "failed to bind") {
		t.Errorf("visible lines missing:\n%s", out)
	}

	v.Store().Reset()
	if out := m.renderLines(v.Frame()); !strings.Contains(out, "Waiting for logs") {
		t.Errorf("empty window should explain itself:\n%s", out)
	}
}
