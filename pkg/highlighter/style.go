package highlighter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/loganalyzer/logview/pkg/ansi"
)

// Style is the visual treatment of one text run
type Style struct {
	Fg        string
	Bg        string
	Bold      bool
	Faint     bool
	Italic    bool
	Underline bool
	Reverse   bool
	Match     bool // part of a search match
}

// Segment is a run of text rendered with a single style
type Segment struct {
	Text  string
	Style Style
}

// emphasis is layered over search matches. It carries no color so the
// syntax or ANSI color underneath stays visible.
var emphasis = Style{Bold: true, Underline: true, Match: true}

// Over returns s with top layered on it: colors from top win when set,
// attribute flags accumulate.
func (s Style) Over(top Style) Style {
	if top.Fg != "" {
		s.Fg = top.Fg
	}
	if top.Bg != "" {
		s.Bg = top.Bg
	}
	s.Bold = s.Bold || top.Bold
	s.Faint = s.Faint || top.Faint
	s.Italic = s.Italic || top.Italic
	s.Underline = s.Underline || top.Underline
	s.Reverse = s.Reverse || top.Reverse
	s.Match = s.Match || top.Match
	return s
}

// IsZero reports whether the style changes nothing
func (s Style) IsZero() bool {
	return s == Style{}
}

// Lipgloss converts the style for terminal rendering
func (s Style) Lipgloss() lipgloss.Style {
	st := lipgloss.NewStyle()
	if s.Fg != "" {
		st = st.Foreground(lipgloss.Color(s.Fg))
	}
	if s.Bg != "" {
		st = st.Background(lipgloss.Color(s.Bg))
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Faint {
		st = st.Faint(true)
	}
	if s.Italic {
		st = st.Italic(true)
	}
	if s.Underline {
		st = st.Underline(true)
	}
	if s.Reverse {
		st = st.Reverse(true)
	}
	return st
}

func fromANSI(a ansi.Attrs) Style {
	return Style{
		Fg:        a.Fg,
		Bg:        a.Bg,
		Bold:      a.Bold,
		Faint:     a.Faint,
		Italic:    a.Italic,
		Underline: a.Underline,
		Reverse:   a.Reverse,
	}
}
