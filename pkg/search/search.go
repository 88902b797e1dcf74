// Package search derives per-record match spans for fuzzy and regex queries.
package search

import (
	"sync"

	"github.com/loganalyzer/logview/pkg/ansi"
	"github.com/loganalyzer/logview/pkg/models"
)

// Engine evaluates a query against the log buffer, remembering results per
// record so that appends only evaluate the new records.
type Engine struct {
	mu       sync.Mutex
	compiled *CompiledQuery
	results  map[uint64]models.MatchSpans // nil value: evaluated, no match
}

// New creates an Engine with no active query
func New() *Engine {
	return &Engine{}
}

// Evaluate returns the match spans of every matching record keyed by Seq.
// Records without a match are absent from the result.
func (e *Engine) Evaluate(records []models.LogRecord, query models.SearchQuery) map[uint64]models.MatchSpans {
	e.mu.Lock()
	defer e.mu.Unlock()

	query = query.Normalized()
	if e.compiled == nil || e.compiled.Query != query {
		e.compiled = Compile(query)
		e.results = nil
	}
	cq := e.compiled

	matches := make(map[uint64]models.MatchSpans)
	if cq.Inert() {
		e.results = nil
		return matches
	}

	// rebuild the cache from the current records so evicted ones fall out
	next := make(map[uint64]models.MatchSpans, len(records))
	for _, record := range records {
		spans, seen := e.results[record.Seq]
		if !seen {
			spans = cq.Match(record)
		}
		next[record.Seq] = spans
		if len(spans) > 0 {
			matches[record.Seq] = spans
		}
	}
	e.results = next
	return matches
}

// Invalidate drops cached results, used when the buffer is reset
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = nil
}

// Compiled returns the query currently cached by the engine
func (e *Engine) Compiled() *CompiledQuery {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compiled
}

// Match evaluates one record, returning nil when it does not match.
func (cq *CompiledQuery) Match(record models.LogRecord) models.MatchSpans {
	if cq.Inert() || !cq.Candidate(record) {
		return nil
	}
	text := ansi.Strip(record.Message)

	if cq.Pattern != nil {
		return normalize(text, regexSpans(cq, text))
	}

	var spans models.MatchSpans
	for _, token := range cq.Tokens {
		found, ok := matchToken(text, token, cq.Query.Threshold)
		if !ok {
			return nil
		}
		spans = append(spans, found...)
	}
	return normalize(text, spans)
}

func regexSpans(cq *CompiledQuery, text string) models.MatchSpans {
	var spans models.MatchSpans
	for _, loc := range cq.Pattern.FindAllStringIndex(text, -1) {
		if loc[1] > loc[0] {
			spans = append(spans, models.MatchSpan{Start: loc[0], End: loc[1]})
		}
	}
	return spans
}

// Evaluate runs query over records without caching.
func Evaluate(records []models.LogRecord, query models.SearchQuery) map[uint64]models.MatchSpans {
	return New().Evaluate(records, query)
}

// Filter returns the records present in matches, preserving buffer order.
func Filter(records []models.LogRecord, matches map[uint64]models.MatchSpans) []models.LogRecord {
	out := make([]models.LogRecord, 0, len(matches))
	for _, record := range records {
		if len(matches[record.Seq]) > 0 {
			out = append(out, record)
		}
	}
	return out
}

// FilteredView returns only the records matching query, in buffer order.
func FilteredView(records []models.LogRecord, query models.SearchQuery) []models.LogRecord {
	return Filter(records, Evaluate(records, query))
}

// Count returns the number of records in the filtered view
func Count(records []models.LogRecord, query models.SearchQuery) int {
	return len(Evaluate(records, query))
}
