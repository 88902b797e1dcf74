// Package viewport presents the visible slice of a growing log sequence.
package viewport

// Window tracks which part of Total lines is on screen. While following and
// not scrolled away by the user, growth keeps the tail in view.
type Window struct {
	Total  int
	Height int
	Offset int
	Follow bool

	userScrolled bool
}

// NewWindow creates a window of height lines
func NewWindow(height int, follow bool) *Window {
	if height < 1 {
		height = 1
	}
	return &Window{Height: height, Follow: follow}
}

func (w *Window) maxOffset() int {
	if m := w.Total - w.Height; m > 0 {
		return m
	}
	return 0
}

func (w *Window) clamp() {
	if w.Offset > w.maxOffset() {
		w.Offset = w.maxOffset()
	}
	if w.Offset < 0 {
		w.Offset = 0
	}
}

// Following reports whether growth scrolls the window to the tail
func (w *Window) Following() bool {
	return w.Follow && !w.userScrolled
}

// UserScrolled reports whether the user moved away from the tail
func (w *Window) UserScrolled() bool {
	return w.userScrolled
}

// SetTotal updates the number of lines. Shrinking clamps the offset.
func (w *Window) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	grew := n > w.Total
	w.Total = n
	if grew && w.Following() {
		w.Offset = w.maxOffset()
		return
	}
	w.clamp()
}

// SetHeight resizes the window, keeping the tail in view when following
func (w *Window) SetHeight(h int) {
	if h < 1 {
		h = 1
	}
	w.Height = h
	if w.Following() {
		w.Offset = w.maxOffset()
		return
	}
	w.clamp()
}

// SetFollow turns tail following on or off. Turning it on jumps to the tail.
func (w *Window) SetFollow(on bool) {
	w.Follow = on
	if on {
		w.Bottom()
	}
}

// ScrollUp moves n lines towards the start
func (w *Window) ScrollUp(n int) {
	w.moveTo(w.Offset - n)
}

// ScrollDown moves n lines towards the end
func (w *Window) ScrollDown(n int) {
	w.moveTo(w.Offset + n)
}

// PageUp scrolls up by a page
func (w *Window) PageUp() {
	w.ScrollUp(w.Height)
}

// PageDown scrolls down by a page
func (w *Window) PageDown() {
	w.ScrollDown(w.Height)
}

// Top scrolls to the first line
func (w *Window) Top() {
	w.moveTo(0)
}

// Bottom scrolls to the last line and resumes following
func (w *Window) Bottom() {
	w.Offset = w.maxOffset()
	w.userScrolled = false
}

// moveTo is a manual scroll; landing on the tail resumes following.
func (w *Window) moveTo(offset int) {
	w.Offset = offset
	w.clamp()
	w.userScrolled = w.Offset < w.maxOffset()
}

// ScrollToIndex brings line i into view, centered where possible.
func (w *Window) ScrollToIndex(i int) {
	if i < 0 || i >= w.Total {
		return
	}
	w.moveTo(i - w.Height/2)
}

// Visible returns the half-open range of line indexes on screen
func (w *Window) Visible() (start, end int) {
	start = w.Offset
	end = w.Offset + w.Height
	if end > w.Total {
		end = w.Total
	}
	if start > end {
		start = end
	}
	return start, end
}

// AtBottom reports whether the last line is on screen
func (w *Window) AtBottom() bool {
	return w.Offset >= w.maxOffset()
}
