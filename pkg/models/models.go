package models

import (
	"strings"
)

// LogRecord represents a single log line received from a stream
type LogRecord struct {
	Seq           uint64          `json:"seq"`            // arrival sequence, stamped by the store
	Key           SubscriptionKey `json:"key"`            // subscription the record arrived under
	SourceID      string          `json:"source_id"`      // pod or container identity
	ContainerName string          `json:"container_name"` // container inside the pod
	Message       string          `json:"message"`        // raw text, may embed ANSI escapes
	Timestamp     Timestamp       `json:"timestamp"`      // source supplied
}

// Less reports whether r sorts before other in buffer order:
// source id, then timestamp, then arrival.
func (r LogRecord) Less(other LogRecord) bool {
	if r.SourceID != other.SourceID {
		return r.SourceID < other.SourceID
	}
	if c := r.Timestamp.Compare(other.Timestamp); c != 0 {
		return c < 0
	}
	return r.Seq < other.Seq
}

// SubscriptionKey identifies which log stream is wanted
type SubscriptionKey struct {
	Account    string `json:"account" yaml:"account"`
	Cluster    string `json:"cluster" yaml:"cluster"`
	TrackingID string `json:"trackingId" yaml:"tracking_id"`
}

// IsZero reports whether the key is missing a field, meaning no subscription.
func (k SubscriptionKey) IsZero() bool {
	return strings.TrimSpace(k.Account) == "" ||
		strings.TrimSpace(k.Cluster) == "" ||
		strings.TrimSpace(k.TrackingID) == ""
}

func (k SubscriptionKey) String() string {
	if k.IsZero() {
		return "<none>"
	}
	return k.Account + "/" + k.Cluster + "/" + k.TrackingID
}

// SearchMode selects how query text is matched
type SearchMode string

const (
	SearchFuzzy SearchMode = "fuzzy"
	SearchRegex SearchMode = "regex"
)

// DefaultThreshold is the fuzzy strictness used when none is configured
const DefaultThreshold = 0.6

// SearchQuery represents the active search
type SearchQuery struct {
	Text          string     `json:"text"`
	Mode          SearchMode `json:"mode"`
	Threshold     float64    `json:"threshold"` // fuzzy strictness, lower is stricter
	CaseSensitive bool       `json:"case_sensitive"`
}

// IsEmpty reports whether the query would match nothing because it has no text.
func (q SearchQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Normalized returns the query with mode defaulted and threshold clamped to [0,1].
func (q SearchQuery) Normalized() SearchQuery {
	if q.Mode != SearchRegex {
		q.Mode = SearchFuzzy
	}
	switch {
	case q.Threshold < 0:
		q.Threshold = 0
	case q.Threshold > 1:
		q.Threshold = 1
	}
	return q
}

// MatchSpan is a half-open byte range [Start, End) into a plain message
type MatchSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes the span covers
func (s MatchSpan) Len() int {
	return s.End - s.Start
}

// MatchSpans is an ordered, non-overlapping list of spans
type MatchSpans []MatchSpan

// ViewMode represents what the viewer displays
type ViewMode string

const (
	ViewAll     ViewMode = "all"     // every record, matches highlighted
	ViewMatches ViewMode = "matches" // only records with a match
)

// Toggle flips between the two view modes
func (v ViewMode) Toggle() ViewMode {
	if v == ViewMatches {
		return ViewAll
	}
	return ViewMatches
}

// EventType tags events pushed by the transport channel
type EventType string

const (
	EventOpen           EventType = "open"
	EventLog            EventType = "log"
	EventInfo           EventType = "info"
	EventError          EventType = "error"  // reported by the server
	EventUpdate         EventType = "update" // informational only
	EventTransportError EventType = "transport_error"
	EventClosed         EventType = "closed"
)

// Event represents one typed event from the transport channel
type Event struct {
	Type    EventType       `json:"type"`
	Key     SubscriptionKey `json:"key"`
	Record  *LogRecord      `json:"record,omitempty"`
	Message string          `json:"message,omitempty"`
	Err     error           `json:"-"`
}
