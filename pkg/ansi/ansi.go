// Package ansi interprets SGR escape sequences embedded in log messages.
//
// Parse splits a message into plain text and style spans whose offsets refer
// to the plain text, so search spans and syntax tokens computed on the plain
// text line up with the colors the source emitted. Sequences other than SGR
// are stripped. Truncated sequences at the end of a message are dropped.
package ansi

import (
	"strconv"
	"strings"
)

const esc = '\x1b'

// Attrs is the visual state set by SGR codes
type Attrs struct {
	Fg        string // lipgloss color: ANSI index ("1"), 256 index ("208") or "#rrggbb"
	Bg        string
	Bold      bool
	Faint     bool
	Italic    bool
	Underline bool
	Reverse   bool
}

// IsZero reports whether no attribute is set
func (a Attrs) IsZero() bool {
	return a == Attrs{}
}

// Span applies Attrs to the plain-text range [Start, End)
type Span struct {
	Start int
	End   int
	Attrs Attrs
}

// Strip returns message without any escape sequences
func Strip(message string) string {
	if strings.IndexByte(message, esc) < 0 {
		return message
	}
	plain, _ := Parse(message)
	return plain
}

// Parse returns the plain text of message and the styled spans in it.
func Parse(message string) (string, []Span) {
	if strings.IndexByte(message, esc) < 0 {
		return message, nil
	}

	var (
		plain   strings.Builder
		spans   []Span
		current Attrs
		start   int
	)
	plain.Grow(len(message))

	flush := func() {
		end := plain.Len()
		if end > start && !current.IsZero() {
			spans = append(spans, Span{Start: start, End: end, Attrs: current})
		}
		start = end
	}

	for i := 0; i < len(message); {
		c := message[i]
		if c != esc {
			next := strings.IndexByte(message[i:], esc)
			if next < 0 {
				plain.WriteString(message[i:])
				break
			}
			plain.WriteString(message[i : i+next])
			i += next
			continue
		}

		// lone ESC at end of input
		if i+1 >= len(message) {
			break
		}

		switch message[i+1] {
		case '[':
			params, final, n := readCSI(message[i+2:])
			if n < 0 {
				// truncated sequence, nothing after it is renderable
				i = len(message)
				continue
			}
			if final == 'm' {
				next := applySGR(current, params)
				if next != current {
					flush()
					current = next
				}
			}
			i += 2 + n
		case ']':
			i += 2 + skipOSC(message[i+2:])
		default:
			// two byte escape such as ESC c or ESC =
			i += 2
		}
	}
	flush()

	return plain.String(), spans
}

// readCSI scans the parameter and final bytes of a CSI sequence. It returns the
// parameter string, the final byte and the number of bytes consumed, or n < 0
// when the input ends before a final byte.
func readCSI(s string) (string, byte, int) {
	for j := 0; j < len(s); j++ {
		b := s[j]
		if b >= 0x40 && b <= 0x7e {
			return s[:j], b, j + 1
		}
		if b < 0x20 || b > 0x3f {
			// not a parameter or intermediate byte; treat as malformed and stop here
			return "", 0, j
		}
	}
	return "", 0, -1
}

// skipOSC returns how many bytes the OSC body and its terminator use.
func skipOSC(s string) int {
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '\a':
			return j + 1
		case esc:
			if j+1 < len(s) && s[j+1] == '\\' {
				return j + 2
			}
		}
	}
	return len(s)
}

func applySGR(a Attrs, params string) Attrs {
	if params == "" {
		return Attrs{}
	}
	codes := parseParams(params)
	for k := 0; k < len(codes); k++ {
		code := codes[k]
		switch {
		case code == 0:
			a = Attrs{}
		case code == 1:
			a.Bold = true
		case code == 2:
			a.Faint = true
		case code == 3:
			a.Italic = true
		case code == 4:
			a.Underline = true
		case code == 7:
			a.Reverse = true
		case code == 22:
			a.Bold, a.Faint = false, false
		case code == 23:
			a.Italic = false
		case code == 24:
			a.Underline = false
		case code == 27:
			a.Reverse = false
		case code >= 30 && code <= 37:
			a.Fg = strconv.Itoa(code - 30)
		case code == 39:
			a.Fg = ""
		case code >= 40 && code <= 47:
			a.Bg = strconv.Itoa(code - 40)
		case code == 49:
			a.Bg = ""
		case code >= 90 && code <= 97:
			a.Fg = strconv.Itoa(code - 90 + 8)
		case code >= 100 && code <= 107:
			a.Bg = strconv.Itoa(code - 100 + 8)
		case code == 38 || code == 48:
			color, used := extendedColor(codes[k+1:])
			k += used
			if color == "" {
				continue
			}
			if code == 38 {
				a.Fg = color
			} else {
				a.Bg = color
			}
		}
	}
	return a
}

// extendedColor decodes the arguments after 38 or 48.
func extendedColor(args []int) (string, int) {
	if len(args) == 0 {
		return "", 0
	}
	switch args[0] {
	case 5:
		if len(args) < 2 || args[1] < 0 || args[1] > 255 {
			return "", len(args)
		}
		return strconv.Itoa(args[1]), 2
	case 2:
		if len(args) < 4 {
			return "", len(args)
		}
		r, g, b := clamp(args[1]), clamp(args[2]), clamp(args[3])
		return "#" + hex2(r) + hex2(g) + hex2(b), 4
	}
	return "", 1
}

func parseParams(params string) []int {
	fields := strings.FieldsFunc(params, func(r rune) bool { return r == ';' || r == ':' })
	codes := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			n = 0
		}
		codes = append(codes, n)
	}
	if len(codes) == 0 {
		codes = append(codes, 0)
	}
	return codes
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func hex2(v int) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0x0f]})
}
