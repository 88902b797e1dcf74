package viewport

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/models"
)

// RenderLine is one visible line, ready to paint
type RenderLine struct {
	Number    int    // 1-based position in the displayed sequence
	Label     string // zero padded Number
	Key       string // stable identity for incremental redraw
	Seq       uint64
	Timestamp string
	SourceID  string
	Container string
	Matched   bool
	Segments  []highlighter.Segment
}

// LineNumber zero pads n to the digit count of total
func LineNumber(n, total int) string {
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("%0*d", width, n)
}

// Key derives a deterministic 10 character id for a record at index. Parts
// are length-prefixed so that ("a|b") and ("a", "b") hash differently.
func Key(record models.LogRecord, index int) string {
	h := sha256.New()
	for _, p := range []string{record.Message, record.Timestamp.Raw, record.SourceID, strconv.Itoa(index)} {
		fmt.Fprintf(h, "%d:%s", len(p), p)
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:5])
}

// NewRenderLine builds the line for record displayed at index out of total.
func NewRenderLine(record models.LogRecord, index, total int, segments []highlighter.Segment, matched bool) RenderLine {
	return RenderLine{
		Number:    index + 1,
		Label:     LineNumber(index+1, total),
		Key:       Key(record, index),
		Seq:       record.Seq,
		Timestamp: record.Timestamp.Display(),
		SourceID:  record.SourceID,
		Container: record.ContainerName,
		Matched:   matched,
		Segments:  segments,
	}
}
