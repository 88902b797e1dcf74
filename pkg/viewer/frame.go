package viewer

import (
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/search"
	"github.com/loganalyzer/logview/pkg/viewport"
)

// Frame is one rendering of the widget
type Frame struct {
	Title     string
	Lines     []viewport.RenderLine
	Total     int // records in the buffer
	Displayed int // length of the displayed sequence
	Matches   int
	Offset    int
	Height    int
	Width     int
	Dropped   uint64

	State      State
	Key        models.SubscriptionKey
	Error      string
	Status     string
	Query      models.SearchQuery
	QueryError error
	Mode       models.ViewMode
	Following  bool
	Fullscreen bool

	ShowNumbers   bool
	ShowTimestamp bool
	Theme         highlighter.Theme
}

// PaintOptions returns how lines of this frame should be painted
func (f Frame) PaintOptions() viewport.PaintOptions {
	return viewport.PaintOptions{
		Theme:         f.Theme,
		ShowNumbers:   f.ShowNumbers,
		ShowTimestamp: f.ShowTimestamp,
		ShowSource:    true,
		MarkMatches:   f.Mode == models.ViewAll && !f.Query.IsEmpty(),
	}
}

// Frame runs the pipeline: snapshot, evaluate, filter in matches mode,
// window, then highlight only the visible lines.
func (v *Viewer) Frame() Frame {
	records := v.store.Records()

	v.mu.Lock()
	query, mode := v.query, v.mode
	v.mu.Unlock()

	matches := v.engine.Evaluate(records, query)
	displayed := records
	if mode == models.ViewMatches {
		displayed = search.Filter(records, matches)
	}

	v.mu.Lock()
	v.window.SetTotal(len(displayed))
	start, end := v.window.Visible()
	f := Frame{
		Title:         v.opts.Title,
		Total:         len(records),
		Displayed:     len(displayed),
		Matches:       len(matches),
		Offset:        v.window.Offset,
		Height:        v.window.Height,
		Width:         v.width,
		Dropped:       v.store.Dropped(),
		State:         v.state,
		Key:           v.key,
		Error:         v.errText,
		Status:        v.status,
		Query:         query,
		Mode:          mode,
		Following:     v.window.Following(),
		Fullscreen:    v.fullscreen,
		ShowNumbers:   v.showNumbers,
		ShowTimestamp: v.showTimestamp,
		Theme:         v.hl.Theme(),
	}
	v.mu.Unlock()

	if query.Mode == models.SearchRegex && !query.IsEmpty() {
		f.QueryError = search.Validate(query)
	}

	f.Lines = make([]viewport.RenderLine, 0, end-start)
	for i := start; i < end; i++ {
		r := displayed[i]
		spans := matches[r.Seq]
		segments := v.hl.Render(r.Message, v.opts.Language, v.opts.ANSI, spans)
		f.Lines = append(f.Lines, viewport.NewRenderLine(r, i, len(displayed), segments, len(spans) > 0))
	}
	return f
}

// effectiveHeight is the window height; callers hold v.mu.
func (v *Viewer) effectiveHeight() int {
	h := v.height
	if !v.fullscreen && v.opts.MaxLines > 0 && h > v.opts.MaxLines {
		h = v.opts.MaxLines
	}
	return h
}

func (v *Viewer) update(fn func()) {
	v.mu.Lock()
	fn()
	v.mu.Unlock()
	v.notify()
}

// SetQuery replaces the search query. Ignored when search is disabled.
func (v *Viewer) SetQuery(q models.SearchQuery) {
	if !v.opts.EnableSearch {
		return
	}
	v.update(func() { v.query = q.Normalized() })
}

// SetQueryText changes only the query text
func (v *Viewer) SetQueryText(text string) {
	q := v.Query()
	q.Text = text
	v.SetQuery(q)
}

// ToggleSearchMode switches between fuzzy and regex matching
func (v *Viewer) ToggleSearchMode() {
	q := v.Query()
	if q.Mode == models.SearchRegex {
		q.Mode = models.SearchFuzzy
	} else {
		q.Mode = models.SearchRegex
	}
	v.SetQuery(q)
}

// Query returns the active query
func (v *Viewer) Query() models.SearchQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// SetViewMode chooses between all records and matches only
func (v *Viewer) SetViewMode(mode models.ViewMode) {
	v.update(func() {
		v.mode = mode
		if v.window.Following() {
			v.window.Bottom()
		}
	})
}

// ToggleViewMode flips the view mode
func (v *Viewer) ToggleViewMode() {
	v.mu.Lock()
	mode := v.mode.Toggle()
	v.mu.Unlock()
	v.SetViewMode(mode)
}

// ToggleFullscreen flips fullscreen. The buffer and scroll offset are kept.
func (v *Viewer) ToggleFullscreen() {
	v.update(func() {
		v.fullscreen = !v.fullscreen
		v.window.SetHeight(v.effectiveHeight())
	})
}

// Fullscreen reports whether the widget is fullscreen
func (v *Viewer) Fullscreen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fullscreen
}

// SetFollow turns tail following on or off
func (v *Viewer) SetFollow(on bool) {
	v.update(func() { v.window.SetFollow(on) })
}

// ToggleFollow flips tail following
func (v *Viewer) ToggleFollow() {
	v.update(func() { v.window.SetFollow(!v.window.Follow) })
}

// ScrollUp moves n lines towards the start
func (v *Viewer) ScrollUp(n int) {
	v.update(func() { v.window.ScrollUp(n) })
}

// ScrollDown moves n lines towards the end
func (v *Viewer) ScrollDown(n int) {
	v.update(func() { v.window.ScrollDown(n) })
}

// PageUp scrolls up one page
func (v *Viewer) PageUp() {
	v.update(v.window.PageUp)
}

// PageDown scrolls down one page
func (v *Viewer) PageDown() {
	v.update(v.window.PageDown)
}

// Top scrolls to the first line
func (v *Viewer) Top() {
	v.update(v.window.Top)
}

// Bottom scrolls to the last line and resumes following
func (v *Viewer) Bottom() {
	v.update(v.window.Bottom)
}

// ScrollToIndex brings displayed line i into view
func (v *Viewer) ScrollToIndex(i int) {
	v.update(func() { v.window.ScrollToIndex(i) })
}

// Resize sets the space available to the widget
func (v *Viewer) Resize(width, height int) {
	v.update(func() {
		v.width = width
		v.height = height
		v.window.SetHeight(v.effectiveHeight())
	})
}

// ToggleLineNumbers shows or hides the line number column
func (v *Viewer) ToggleLineNumbers() {
	v.update(func() { v.showNumbers = !v.showNumbers })
}

// ToggleTimestamps shows or hides record timestamps
func (v *Viewer) ToggleTimestamps() {
	v.update(func() { v.showTimestamp = !v.showTimestamp })
}

// SetTheme switches the color theme
func (v *Viewer) SetTheme(name string) {
	v.hl.SetTheme(name)
	v.notify()
}

// SetRules replaces the user highlight rules
func (v *Viewer) SetRules(rules []config.HighlightRule) {
	v.hl.SetRules(rules)
	v.notify()
}
