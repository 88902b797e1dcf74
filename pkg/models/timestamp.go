package models

import (
	"strconv"
	"strings"
	"time"
)

// TimestampKind describes how a source supplied its timestamp
type TimestampKind int

const (
	TimestampNone TimestampKind = iota
	TimestampText
	TimestampNumeric
)

// Timestamp keeps the source value alongside what could be parsed from it
type Timestamp struct {
	Raw    string        `json:"raw"`
	Kind   TimestampKind `json:"kind"`
	Time   time.Time     `json:"time"`   // zero when unparseable
	Number float64       `json:"number"` // set for numeric timestamps
}

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
const epochMillisCutoff = 1e12

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"02/Jan/2006:15:04:05 -0700", // apache
	"Mon Jan _2 15:04:05 2006",   // unix date
	"Jan _2 15:04:05",            // syslog
}

// TextTimestamp builds a timestamp from a string value.
func TextTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}
	}
	ts := Timestamp{Raw: raw, Kind: TimestampText}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			return ts
		}
	}
	// numbers sent as strings still order numerically
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumericTimestamp(n)
	}
	return ts
}

// NumericTimestamp builds a timestamp from an epoch number in seconds or milliseconds.
func NumericTimestamp(n float64) Timestamp {
	return Timestamp{
		Raw:    strconv.FormatFloat(n, 'f', -1, 64),
		Kind:   TimestampNumeric,
		Number: n,
		Time:   epochToTime(n),
	}
}

func epochToTime(n float64) time.Time {
	if n >= epochMillisCutoff {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// IsZero reports whether no timestamp was supplied
func (t Timestamp) IsZero() bool {
	return t.Kind == TimestampNone
}

// Compare orders timestamps; it returns -1, 0 or +1.
func (t Timestamp) Compare(other Timestamp) int {
	if t.Kind == TimestampNone || other.Kind == TimestampNone {
		return cmpInt(boolRank(t.Kind != TimestampNone), boolRank(other.Kind != TimestampNone))
	}
	// numeric values always carry a time, so seconds and millis order together
	if t.Kind == TimestampNumeric && other.Kind == TimestampNumeric {
		return t.Time.Compare(other.Time)
	}
	if !t.Time.IsZero() && !other.Time.IsZero() {
		return t.Time.Compare(other.Time)
	}
	return strings.Compare(t.Raw, other.Raw)
}

// Display returns a short human form of the timestamp for the gutter.
func (t Timestamp) Display() string {
	if t.Kind == TimestampNone {
		return ""
	}
	if !t.Time.IsZero() {
		return t.Time.Format("2006-01-02 15:04:05")
	}
	return t.Raw
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
