package search

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/loganalyzer/logview/pkg/models"
	"github.com/sahilm/fuzzy"
)

// maxStarts bounds how many alignments are tried per token
const maxStarts = 64

// suffixes exposes the message tails starting at each candidate position so
// the matcher can try every alignment of the first query rune.
type suffixes struct {
	text   string
	starts []int
}

func (s suffixes) String(i int) string { return s.text[s.starts[i]:] }
func (s suffixes) Len() int            { return len(s.starts) }

// matchToken finds the best case-insensitive subsequence alignment of token in
// text. The score is the share of gap bytes inside the matched range: 0 for a
// contiguous hit, approaching 1 as the characters spread out.
func matchToken(text, token string, threshold float64) (models.MatchSpans, bool) {
	if token == "" {
		return nil, false
	}
	if start, end, ok := indexFold(text, token); ok {
		return models.MatchSpans{{Start: start, End: end}}, true
	}

	src := suffixes{text: text, starts: alignments(text, token)}
	if len(src.starts) == 0 {
		return nil, false
	}

	var (
		best      []int
		bestScore = 2.0
	)
	for _, m := range fuzzy.FindFrom(token, src) {
		offsets := make([]int, len(m.MatchedIndexes))
		for i, idx := range m.MatchedIndexes {
			offsets[i] = idx + src.starts[m.Index]
		}
		score := gapScore(text, offsets)
		if score < bestScore || (score == bestScore && offsets[0] < best[0]) {
			best, bestScore = offsets, score
		}
	}
	if best == nil || bestScore > threshold {
		return nil, false
	}
	return runs(text, best), true
}

// indexFold returns the first case-insensitive contiguous occurrence of token
func indexFold(text, token string) (start, end int, ok bool) {
	for i := range text {
		j := i
		matched := true
		for _, want := range token {
			if j >= len(text) {
				matched = false
				break
			}
			got, size := utf8.DecodeRuneInString(text[j:])
			if !equalFold(got, want) {
				matched = false
				break
			}
			j += size
		}
		if matched {
			return i, j, true
		}
	}
	return 0, 0, false
}

// alignments picks where an alignment of token may start: the last
// occurrence of its first rune before each occurrence of its second rune.
// Earlier occurrences would only widen the match.
func alignments(text, token string) []int {
	first, size := utf8.DecodeRuneInString(token)
	second, _ := utf8.DecodeRuneInString(token[size:])
	single := len(token) == size

	var starts []int
	last := -1
	for i, r := range text {
		if !single && last >= 0 && equalFold(r, second) {
			if n := len(starts); n == 0 || starts[n-1] != last {
				starts = append(starts, last)
			}
		}
		if equalFold(r, first) {
			last = i
			if single {
				starts = append(starts, i)
			}
		}
		if len(starts) == maxStarts {
			break
		}
	}
	return starts
}

func equalFold(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}

func gapScore(text string, offsets []int) float64 {
	if len(offsets) == 0 {
		return 1
	}
	last := offsets[len(offsets)-1]
	_, size := utf8.DecodeRuneInString(text[last:])
	span := last + size - offsets[0]

	matched := 0
	for _, o := range offsets {
		_, n := utf8.DecodeRuneInString(text[o:])
		matched += n
	}
	if span <= 0 {
		return 1
	}
	return float64(span-matched) / float64(span)
}

// runs turns matched rune offsets into contiguous byte spans
func runs(text string, offsets []int) models.MatchSpans {
	var spans models.MatchSpans
	for _, o := range offsets {
		_, size := utf8.DecodeRuneInString(text[o:])
		if n := len(spans); n > 0 && spans[n-1].End == o {
			spans[n-1].End = o + size
			continue
		}
		spans = append(spans, models.MatchSpan{Start: o, End: o + size})
	}
	return spans
}

// normalize sorts spans, coalesces adjacent or overlapping ones and drops
// spans covering a single character.
func normalize(text string, spans models.MatchSpans) models.MatchSpans {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	merged := models.MatchSpans{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}

	out := merged[:0]
	for _, s := range merged {
		if utf8.RuneCountInString(text[s.Start:s.End]) > 1 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
