package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/loganalyzer/logview/pkg/config"
)

// KeyMap holds the bindings of the log view
type KeyMap struct {
	Search          key.Binding
	Escape          key.Binding
	ToggleView      key.Binding
	ToggleMode      key.Binding
	ToggleFollow    key.Binding
	Fullscreen      key.Binding
	ScrollUp        key.Binding
	ScrollDown      key.Binding
	PageUp          key.Binding
	PageDown        key.Binding
	Top             key.Binding
	Bottom          key.Binding
	ToggleNumbers   key.Binding
	ToggleTimestamp key.Binding
	Help            key.Binding
	Quit            key.Binding
}

// NewKeyMap builds the bindings from the configured keybindings
func NewKeyMap(cfg *config.Config) KeyMap {
	bind := func(action, help string, extra ...string) key.Binding {
		k := cfg.GetKeybinding(action)
		return key.NewBinding(
			key.WithKeys(append([]string{k}, extra...)...),
			key.WithHelp(k, help),
		)
	}

	return KeyMap{
		Search:          bind("search", "search"),
		Escape:          bind("escape", "close"),
		ToggleView:      bind("toggle_view", "all/matches"),
		ToggleMode:      bind("toggle_mode", "fuzzy/regex"),
		ToggleFollow:    bind("toggle_follow", "follow"),
		Fullscreen:      bind("fullscreen", "fullscreen"),
		ScrollUp:        bind("scroll_up", "up", "up"),
		ScrollDown:      bind("scroll_down", "down", "down"),
		PageUp:          bind("page_up", "page up", "pgup"),
		PageDown:        bind("page_down", "page down", "pgdown"),
		Top:             bind("goto_top", "top", "home"),
		Bottom:          bind("goto_bottom", "bottom", "end"),
		ToggleNumbers:   bind("toggle_numbers", "line numbers"),
		ToggleTimestamp: bind("toggle_timestamp", "timestamps"),
		Help:            bind("help", "help"),
		Quit:            bind("quit", "quit", "ctrl+c"),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.ToggleView, k.ToggleFollow, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ScrollUp, k.ScrollDown, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Search, k.ToggleMode, k.ToggleView, k.Escape},
		{k.ToggleFollow, k.Fullscreen, k.ToggleNumbers, k.ToggleTimestamp, k.Help, k.Quit},
	}
}
