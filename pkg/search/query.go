package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loganalyzer/logview/pkg/models"
)

// CompiledQuery is a search query prepared for repeated evaluation
type CompiledQuery struct {
	Query        models.SearchQuery
	Tokens       []string       // fuzzy tokens, all must match
	Pattern      *regexp.Regexp // regex mode
	FieldQueries []FieldQuery
	Err          error // regex compile error, the query is inert when set
}

// FieldQuery restricts candidates by record metadata (e.g. source:api-7f9)
type FieldQuery struct {
	Field    string
	Operator QueryOperator
	Value    string
}

// QueryOperator represents field query operators
type QueryOperator int

const (
	OpContains QueryOperator = iota
	OpEquals
	OpNotEquals
)

// fieldAliases maps accepted qualifier names to record fields
var fieldAliases = map[string]string{
	"source":    "source",
	"pod":       "source",
	"container": "container",
}

// Compile prepares query for evaluation. It never fails: an invalid regex
// yields an inert query with Err set.
func Compile(query models.SearchQuery) *CompiledQuery {
	query = query.Normalized()
	cq := &CompiledQuery{Query: query}
	if query.IsEmpty() {
		return cq
	}

	var text []string
	for _, part := range splitQuery(query.Text) {
		if fq, ok := parseFieldQuery(part); ok {
			cq.FieldQueries = append(cq.FieldQueries, fq)
			continue
		}
		text = append(text, part)
	}

	switch query.Mode {
	case models.SearchRegex:
		pattern := strings.TrimSpace(query.Text)
		if len(cq.FieldQueries) > 0 {
			pattern = strings.Join(text, " ")
		}
		if pattern == "" {
			return cq
		}
		flags := ""
		if !query.CaseSensitive {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + pattern)
		if err != nil {
			cq.Err = fmt.Errorf("invalid regex pattern: %w", err)
			return cq
		}
		cq.Pattern = re
	default:
		for _, t := range text {
			if t = strings.Trim(t, `"`); strings.TrimSpace(t) != "" {
				cq.Tokens = append(cq.Tokens, t)
			}
		}
	}
	return cq
}

// Inert reports whether the query can match nothing
func (cq *CompiledQuery) Inert() bool {
	return cq.Err != nil || (cq.Pattern == nil && len(cq.Tokens) == 0)
}

// Candidate reports whether a record passes the field qualifiers
func (cq *CompiledQuery) Candidate(record models.LogRecord) bool {
	for _, fq := range cq.FieldQueries {
		if !fq.match(record) {
			return false
		}
	}
	return true
}

func (fq FieldQuery) match(record models.LogRecord) bool {
	var value string
	switch fq.Field {
	case "source":
		value = record.SourceID
	case "container":
		value = record.ContainerName
	}

	switch fq.Operator {
	case OpEquals:
		return strings.EqualFold(value, fq.Value)
	case OpNotEquals:
		return !strings.Contains(strings.ToLower(value), strings.ToLower(fq.Value))
	default:
		return strings.Contains(strings.ToLower(value), strings.ToLower(fq.Value))
	}
}

// parseFieldQuery recognizes field:value, field:=value and field:!value
func parseFieldQuery(part string) (FieldQuery, bool) {
	colon := strings.Index(part, ":")
	if colon <= 0 || colon == len(part)-1 {
		return FieldQuery{}, false
	}
	field, ok := fieldAliases[strings.ToLower(part[:colon])]
	if !ok {
		return FieldQuery{}, false
	}

	fq := FieldQuery{Field: field, Operator: OpContains, Value: part[colon+1:]}
	switch {
	case strings.HasPrefix(fq.Value, "="):
		fq.Operator = OpEquals
		fq.Value = fq.Value[1:]
	case strings.HasPrefix(fq.Value, "!"):
		fq.Operator = OpNotEquals
		fq.Value = fq.Value[1:]
	}
	fq.Value = strings.Trim(fq.Value, `"`)
	if fq.Value == "" {
		return FieldQuery{}, false
	}
	return fq, true
}

// splitQuery splits a query string on spaces, keeping quoted phrases together
func splitQuery(queryStr string) []string {
	var parts []string
	var current strings.Builder
	var inQuotes bool

	for _, char := range queryStr {
		switch {
		case char == '"':
			inQuotes = !inQuotes
			current.WriteRune(char)
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// Validate reports why a query would be inert, nil when it is usable or blank.
func Validate(query models.SearchQuery) error {
	return Compile(query).Err
}

// Summary returns a human-readable description of the query
func (cq *CompiledQuery) Summary() string {
	if cq.Query.IsEmpty() {
		return "No filter"
	}

	var parts []string
	if cq.Pattern != nil {
		parts = append(parts, fmt.Sprintf("regex:%q", cq.Pattern.String()))
	}
	for _, t := range cq.Tokens {
		parts = append(parts, fmt.Sprintf("text:%q", t))
	}
	for _, fq := range cq.FieldQueries {
		parts = append(parts, fmt.Sprintf("%s:%s", fq.Field, fq.Value))
	}
	if cq.Err != nil {
		parts = append(parts, "(invalid)")
	}
	if len(parts) == 0 {
		return "No filter"
	}
	return strings.Join(parts, ", ")
}
