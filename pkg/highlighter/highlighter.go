package highlighter

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/loganalyzer/logview/pkg/ansi"
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/parser"
)

// Highlighter turns raw log messages into styled segments
type Highlighter struct {
	mu     sync.RWMutex
	theme  Theme
	rules  []HighlightRule
	parser *parser.LogParser
	cache  *lineCache
}

// HighlightRule is a user supplied pattern painted over syntax and ANSI colors
type HighlightRule struct {
	Name    string
	Pattern *regexp.Regexp
	Style   Style
}

// colorNames lets config files use basic color names instead of numbers
var colorNames = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
}

// New creates a new Highlighter with the theme and rules from cfg
func New(cfg *config.Config) *Highlighter {
	h := &Highlighter{
		theme:  ThemeByName(cfg.UI.Theme),
		parser: parser.New(),
		cache:  newLineCache(DefaultCacheSize),
	}
	h.rules = buildRules(cfg.HighlightRules)
	return h
}

// buildRules compiles rules from configuration, skipping invalid patterns
func buildRules(configRules []config.HighlightRule) []HighlightRule {
	rules := make([]HighlightRule, 0, len(configRules))
	for _, rule := range configRules {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			continue
		}
		rules = append(rules, HighlightRule{
			Name:    rule.Name,
			Pattern: pattern,
			Style:   configStyle(rule.Color, rule.Style),
		})
	}
	return rules
}

// configStyle maps a rule color and a comma separated style list to a Style.
// The color "auto" keeps whatever color is underneath.
func configStyle(color, style string) Style {
	var st Style
	switch color = strings.ToLower(strings.TrimSpace(color)); {
	case color == "", color == "auto":
	case colorNames[color] != "":
		st.Fg = colorNames[color]
	default:
		st.Fg = color
	}

	for _, name := range strings.Split(style, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "bold":
			st.Bold = true
		case "underline":
			st.Underline = true
		case "italic":
			st.Italic = true
		case "faint", "dim":
			st.Faint = true
		case "reverse":
			st.Reverse = true
		}
	}
	return st
}

// SetTheme changes the current theme
func (h *Highlighter) SetTheme(themeName string) {
	h.mu.Lock()
	h.theme = ThemeByName(themeName)
	h.mu.Unlock()
	h.cache.purge()
}

// SetRules replaces the user highlight rules
func (h *Highlighter) SetRules(rules []config.HighlightRule) {
	compiled := buildRules(rules)
	h.mu.Lock()
	h.rules = compiled
	h.mu.Unlock()
	h.cache.purge()
}

// Theme returns the active theme
func (h *Highlighter) Theme() Theme {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.theme
}

// GetAvailableThemes returns the list of built-in themes
func (h *Highlighter) GetAvailableThemes() []string {
	return ThemeNames()
}

// CacheStats reports line cache hits, misses and current size
func (h *Highlighter) CacheStats() (hits, misses uint64, size int) {
	return h.cache.stats()
}

// Render produces the styled segments of one message. When ansiAware is set
// embedded SGR codes become styles, otherwise escapes are stripped. Segment
// text is always plain, and matches index into that plain text.
func (h *Highlighter) Render(message, language string, ansiAware bool, matches models.MatchSpans) []Segment {
	key := cacheKey(message, language, ansiAware, matches)
	if segments, ok := h.cache.get(key); ok {
		return segments
	}

	h.mu.RLock()
	theme, rules := h.theme, h.rules
	h.mu.RUnlock()

	var (
		plain     string
		ansiLayer []layerSpan
	)
	if ansiAware {
		var spans []ansi.Span
		plain, spans = ansi.Parse(message)
		for _, s := range spans {
			ansiLayer = append(ansiLayer, layerSpan{start: s.Start, end: s.End, style: fromANSI(s.Attrs)})
		}
	} else {
		plain = ansi.Strip(message)
	}

	segments := compose(plain,
		clampSpans(plain, h.syntaxLayer(theme, plain, language)),
		ansiLayer,
		clampSpans(plain, ruleLayer(rules, plain)),
		clampSpans(plain, searchLayer(matches)),
	)
	h.cache.add(key, segments)
	return segments
}

// ResolveLanguage returns the lexer name used for plain, resolving "auto".
func (h *Highlighter) ResolveLanguage(plain, language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "plain", "text", "none":
		return ""
	case "auto":
		return h.parser.Detect(plain)
	}
	return language
}

func (h *Highlighter) syntaxLayer(theme Theme, plain, language string) []layerSpan {
	// chroma works on runes; offsets only line up for valid UTF-8
	if plain == "" || !utf8.ValidString(plain) {
		return nil
	}
	name := h.ResolveLanguage(plain, language)
	if name == "" {
		return nil
	}
	lexer := lexers.Get(name)
	if lexer == nil {
		return nil
	}

	it, err := chroma.Coalesce(lexer).Tokenise(&chroma.TokeniseOptions{State: "root"}, plain)
	if err != nil {
		return nil
	}

	var spans []layerSpan
	pos := 0
	for tok := it(); tok != chroma.EOF; tok = it() {
		start := pos
		pos += len(tok.Value)
		if start >= len(plain) {
			break
		}
		if pos == start {
			continue
		}
		if st, ok := theme.tokenStyle(tok.Type); ok {
			spans = append(spans, layerSpan{start: start, end: min(pos, len(plain)), style: st})
		}
	}
	return spans
}

func ruleLayer(rules []HighlightRule, plain string) []layerSpan {
	var spans []layerSpan
	for _, rule := range rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(plain, -1) {
			if loc[1] > loc[0] {
				spans = append(spans, layerSpan{start: loc[0], end: loc[1], style: rule.Style})
			}
		}
	}
	return spans
}

func searchLayer(matches models.MatchSpans) []layerSpan {
	spans := make([]layerSpan, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, layerSpan{start: m.Start, end: m.End, style: emphasis})
	}
	return spans
}

func cacheKey(message, language string, ansiAware bool, matches models.MatchSpans) string {
	var b strings.Builder
	b.Grow(len(message) + len(language) + 8*len(matches) + 4)
	b.WriteString(language)
	if ansiAware {
		b.WriteString("\x00a")
	} else {
		b.WriteString("\x00p")
	}
	for _, m := range matches {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(m.Start))
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(m.End))
	}
	b.WriteByte(0)
	b.WriteString(message)
	return b.String()
}

// PlainText concatenates segment text
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
