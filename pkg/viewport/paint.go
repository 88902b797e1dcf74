package viewport

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/muesli/reflow/truncate"
)

// PaintOptions controls the gutter and width of painted lines
type PaintOptions struct {
	Theme         highlighter.Theme
	ShowNumbers   bool
	ShowTimestamp bool
	ShowSource    bool
	MarkMatches   bool // flag matched lines in the gutter
}

var builderPool = sync.Pool{
	New: func() interface{} {
		return &strings.Builder{}
	},
}

// Paint renders line as terminal text no wider than width cells.
func Paint(line RenderLine, width int, opts PaintOptions) string {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	defer builderPool.Put(b)

	gutter := lipgloss.NewStyle().Foreground(opts.Theme.Color("gutter"))
	if opts.ShowNumbers {
		b.WriteString(gutter.Render(line.Label))
		b.WriteByte(' ')
	}
	if opts.MarkMatches {
		if line.Matched {
			b.WriteString(lipgloss.NewStyle().Foreground(opts.Theme.Color("level_warn")).Render("›"))
		} else {
			b.WriteByte(' ')
		}
		b.WriteByte(' ')
	}
	if opts.ShowTimestamp && line.Timestamp != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(opts.Theme.Color("timestamp")).Faint(true).Render(line.Timestamp))
		b.WriteByte(' ')
	}
	if opts.ShowSource && line.SourceID != "" {
		b.WriteString(gutter.Render("[" + line.SourceID + "]"))
		b.WriteByte(' ')
	}

	for _, seg := range line.Segments {
		if seg.Style.IsZero() {
			b.WriteString(seg.Text)
			continue
		}
		b.WriteString(seg.Style.Lipgloss().Render(seg.Text))
	}

	out := b.String()
	if width > 0 {
		out = truncate.StringWithTail(out, uint(width), "…")
	}
	return out
}

// Gutter returns the width the gutter takes for the given options and total
func Gutter(total int, opts PaintOptions) int {
	w := 0
	if opts.ShowNumbers {
		w += len(LineNumber(total, total)) + 1
	}
	if opts.MarkMatches {
		w += 2
	}
	return w
}
