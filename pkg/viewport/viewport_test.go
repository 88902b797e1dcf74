package viewport

import (
	"strings"
	"testing"

	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/models"
)

func TestFollowOnGrowth(t *testing.T) {
	w := NewWindow(10, true)

	w.SetTotal(25)
	if start, end := w.Visible(); start != 15 || end != 25 {
		t.Fatalf("Visible() = %d,%d, want 15,25", start, end)
	}

	w.ScrollUp(3)
	if !w.UserScrolled() {
		t.Fatal("scrolling up should mark the window as user scrolled")
	}
	w.SetTotal(40)
	if start, _ := w.Visible(); start != 12 {
		t.Errorf("window moved after manual scroll: start = %d, want 12", start)
	}

	w.Bottom()
	w.SetTotal(50)
	if _, end := w.Visible(); end != 50 {
		t.Errorf("Bottom() should resume following, end = %d", end)
	}
}

func TestFollowDisabled(t *testing.T) {
	w := NewWindow(5, false)
	w.SetTotal(100)
	if w.Offset != 0 {
		t.Errorf("Offset = %d, want 0 when not following", w.Offset)
	}

	w.SetFollow(true)
	if w.Offset != 95 || !w.Following() {
		t.Errorf("SetFollow(true) should jump to the tail, Offset = %d", w.Offset)
	}
}

func TestScrollOperations(t *testing.T) {
	tests := []struct {
		name   string
		op     func(w *Window)
		offset int
		user   bool
	}{
		{"page up", func(w *Window) { w.PageUp() }, 80, true},
		{"page up twice then down", func(w *Window) { w.PageUp(); w.PageUp(); w.PageDown() }, 80, true},
		{"top", func(w *Window) { w.Top() }, 0, true},
		{"scroll past start", func(w *Window) { w.ScrollUp(500) }, 0, true},
		{"scroll back to tail", func(w *Window) { w.ScrollUp(3); w.ScrollDown(3) }, 90, false},
		{"scroll past end", func(w *Window) { w.Top(); w.ScrollDown(500) }, 90, false},
		{"scroll to index centers", func(w *Window) { w.ScrollToIndex(40) }, 35, true},
		{"scroll to out of range", func(w *Window) { w.ScrollToIndex(400) }, 90, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(10, true)
			w.SetTotal(100)
			tt.op(w)
			if w.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", w.Offset, tt.offset)
			}
			if w.UserScrolled() != tt.user {
				t.Errorf("UserScrolled() = %v, want %v", w.UserScrolled(), tt.user)
			}
		})
	}
}

func TestShrinkClamps(t *testing.T) {
	w := NewWindow(10, true)
	w.SetTotal(100)
	w.ScrollUp(20)

	w.SetTotal(15)
	if start, end := w.Visible(); start != 5 || end != 15 {
		t.Errorf("Visible() = %d,%d, want 5,15", start, end)
	}

	w.SetTotal(0)
	if start, end := w.Visible(); start != 0 || end != 0 {
		t.Errorf("Visible() on empty = %d,%d", start, end)
	}
}

func TestResizeKeepsTail(t *testing.T) {
	w := NewWindow(10, true)
	w.SetTotal(30)
	w.SetHeight(20)
	if start, end := w.Visible(); start != 10 || end != 30 {
		t.Errorf("Visible() = %d,%d, want 10,30", start, end)
	}
}

func TestLineNumber(t *testing.T) {
	tests := []struct {
		n, total int
		want     string
	}{
		{1, 9, "1"},
		{1, 10, "01"},
		{42, 1000, "0042"},
		{1000, 1000, "1000"},
	}
	for _, tt := range tests {
		if got := LineNumber(tt.n, tt.total); got != tt.want {
			t.Errorf("LineNumber(%d, %d) = %q, want %q", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	r := models.LogRecord{SourceID: "pod", Message: "hello", Timestamp: models.TextTimestamp("2024-01-15T14:30:22Z")}

	k := Key(r, 3)
	if len(k) != 10 {
		t.Errorf("len(Key()) = %d, want 10", len(k))
	}
	if Key(r, 3) != k {
		t.Error("Key() should be deterministic")
	}
	if Key(r, 4) == k {
		t.Error("index should be part of the key")
	}

	a := models.LogRecord{Message: "a|b"}
	b := models.LogRecord{Message: "a", SourceID: "|b"}
	if Key(a, 0) == Key(b, 0) {
		t.Error("parts should be length prefixed")
	}
}

func TestPaint(t *testing.T) {
	r := models.LogRecord{SourceID: "api", Message: "hello world"}
	line := NewRenderLine(r, 6, 120, []highlighter.Segment{
		{Text: "hello", Style: highlighter.Style{Fg: "1"}},
		{Text: " world"},
	}, true)

	if line.Label != "007" || line.Number != 7 {
		t.Fatalf("Label = %q Number = %d", line.Label, line.Number)
	}

	opts := PaintOptions{Theme: highlighter.DarkTheme, ShowNumbers: true, ShowSource: true}
	out := Paint(line, 0, opts)
	if !strings.Contains(out, "007") || !strings.Contains(out, "[api]") || !strings.Contains(out, "world") {
		t.Errorf("Paint() = %q", out)
	}

	short := Paint(line, 8, opts)
	if !strings.HasSuffix(short, "…") {
		t.Errorf("truncated line should end with an ellipsis: %q", short)
	}
	if strings.Contains(short, "world") {
		t.Errorf("line not truncated: %q", short)
	}
}

func TestGutter(t *testing.T) {
	opts := PaintOptions{ShowNumbers: true, MarkMatches: true}
	if got := Gutter(1500, opts); got != 4+1+2 {
		t.Errorf("Gutter() = %d", got)
	}
}
