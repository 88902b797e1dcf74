package highlighter

import (
	"sort"
)

// layerSpan styles the plain-text range [start, end)
type layerSpan struct {
	start int
	end   int
	style Style
}

// compose partitions text at every span boundary of every layer. Each
// partition gets the styles of all spans covering it, applied layer by layer
// so later layers win on color and attributes accumulate.
func compose(text string, layers ...[]layerSpan) []Segment {
	if text == "" {
		return nil
	}

	cuts := []int{0, len(text)}
	for _, layer := range layers {
		for _, s := range layer {
			cuts = append(cuts, s.start, s.end)
		}
	}
	sort.Ints(cuts)

	// layers are clamped to the text, so cuts run from 0 to len(text)
	segments := make([]Segment, 0, len(cuts))
	prev := 0
	for _, cut := range cuts[1:] {
		if cut <= prev {
			continue
		}
		segments = append(segments, Segment{
			Text:  text[prev:cut],
			Style: styleAt(prev, cut, layers),
		})
		prev = cut
	}
	return segments
}

func styleAt(start, end int, layers [][]layerSpan) Style {
	var st Style
	for _, layer := range layers {
		for _, s := range layer {
			if s.start <= start && s.end >= end {
				st = st.Over(s.style)
			}
		}
	}
	return st
}

// clampSpans drops spans that fall outside text or do not sit on rune boundaries.
func clampSpans(text string, spans []layerSpan) []layerSpan {
	out := spans[:0]
	for _, s := range spans {
		if s.end > len(text) {
			s.end = len(text)
		}
		if s.start < 0 || s.start >= s.end {
			continue
		}
		if !runeBoundary(text, s.start) || !runeBoundary(text, s.end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func runeBoundary(text string, i int) bool {
	if i == 0 || i == len(text) {
		return true
	}
	// continuation bytes look like 10xxxxxx
	return text[i]&0xC0 != 0x80
}
