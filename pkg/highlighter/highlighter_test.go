package highlighter

import (
	"reflect"
	"testing"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/models"
)

func newTestHighlighter(rules ...config.HighlightRule) *Highlighter {
	cfg := config.DefaultConfig()
	cfg.HighlightRules = rules
	return New(cfg)
}

func segmentWith(segments []Segment, text string) (Segment, bool) {
	for _, s := range segments {
		if s.Text == text {
			return s, true
		}
	}
	return Segment{}, false
}

func TestRenderComposesANSIAndSearch(t *testing.T) {
	h := newTestHighlighter()

	got := h.Render("\x1b[31mhello\x1b[0m world", "", true, models.MatchSpans{{Start: 2, End: 4}})
	red := Style{Fg: "1"}
	want := []Segment{
		{Text: "he", Style: red},
		{Text: "ll", Style: red.Over(emphasis)},
		{Text: "o", Style: red},
		{Text: " world"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Render() = %+v, want %+v", got, want)
	}
}

func TestRenderStripsWhenNotANSIAware(t *testing.T) {
	h := newTestHighlighter()

	got := h.Render("\x1b[1mbold\x1b[0m text", "", false, nil)
	want := []Segment{{Text: "bold text"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Render() = %+v, want %+v", got, want)
	}
}

func TestRenderSyntax(t *testing.T) {
	h := newTestHighlighter()
	segments := h.Render("ERROR 500 from 10.0.0.1", "accesslog", true, nil)

	if got := PlainText(segments); got != "ERROR 500 from 10.0.0.1" {
		t.Fatalf("PlainText() = %q", got)
	}

	tests := []struct {
		text string
		key  string
		bold bool
	}{
		{"ERROR", "level_error", true},
		{"500", "status_5xx", false},
		{"10.0.0.1", "ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			seg, ok := segmentWith(segments, tt.text)
			if !ok {
				t.Fatalf("no segment %q in %+v", tt.text, segments)
			}
			if seg.Style.Fg != string(DarkTheme.Colors[tt.key]) {
				t.Errorf("Fg = %q, want %q", seg.Style.Fg, DarkTheme.Colors[tt.key])
			}
			if seg.Style.Bold != tt.bold {
				t.Errorf("Bold = %v, want %v", seg.Style.Bold, tt.bold)
			}
		})
	}
}

func TestSearchKeepsSyntaxColor(t *testing.T) {
	h := newTestHighlighter()
	segments := h.Render("ERROR boom", "accesslog", true, models.MatchSpans{{Start: 0, End: 5}})

	seg, ok := segmentWith(segments, "ERROR")
	if !ok {
		t.Fatalf("no ERROR segment in %+v", segments)
	}
	if seg.Style.Fg != string(DarkTheme.Colors["level_error"]) {
		t.Errorf("search emphasis replaced the color: %+v", seg.Style)
	}
	if !seg.Style.Match || !seg.Style.Underline {
		t.Errorf("missing emphasis: %+v", seg.Style)
	}
}

func TestRuleLayer(t *testing.T) {
	h := newTestHighlighter(config.HighlightRule{Name: "oops", Pattern: `oops`, Color: "magenta", Style: "bold,italic"})
	segments := h.Render("ERROR oops", "accesslog", true, nil)

	seg, ok := segmentWith(segments, "oops")
	if !ok {
		t.Fatalf("no oops segment in %+v", segments)
	}
	want := Style{Fg: "5", Bold: true, Italic: true}
	if seg.Style != want {
		t.Errorf("Style = %+v, want %+v", seg.Style, want)
	}
}

func TestUnknownLanguageIsPlain(t *testing.T) {
	h := newTestHighlighter()
	got := h.Render("ERROR 500", "no-such-language", true, nil)
	if want := []Segment{{Text: "ERROR 500"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Render() = %+v, want %+v", got, want)
	}
}

func TestResolveLanguage(t *testing.T) {
	h := newTestHighlighter()

	tests := []struct {
		plain, language, want string
	}{
		{`{"a":1}`, "auto", "json"},
		{"plain line", "auto", "accesslog"},
		{"anything", "yaml", "yaml"},
		{"anything", "plain", ""},
		{"anything", "", ""},
	}
	for _, tt := range tests {
		if got := h.ResolveLanguage(tt.plain, tt.language); got != tt.want {
			t.Errorf("ResolveLanguage(%q, %q) = %q, want %q", tt.plain, tt.language, got, tt.want)
		}
	}
}

func TestRenderCaches(t *testing.T) {
	h := newTestHighlighter()
	h.Render("GET /healthz 200", "accesslog", true, nil)
	h.Render("GET /healthz 200", "accesslog", true, nil)

	hits, misses, size := h.CacheStats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = %d hits, %d misses, %d entries", hits, misses, size)
	}

	// different match spans are a different line
	h.Render("GET /healthz 200", "accesslog", true, models.MatchSpans{{Start: 0, End: 3}})
	if _, _, size = h.CacheStats(); size != 2 {
		t.Errorf("size = %d, want 2", size)
	}

	h.SetTheme("light")
	if _, _, size = h.CacheStats(); size != 0 {
		t.Errorf("SetTheme() should purge the cache, size = %d", size)
	}
}

func TestLineCacheEvicts(t *testing.T) {
	c := newLineCache(2)
	c.add("a", nil)
	c.add("b", nil)
	c.get("a")
	c.add("c", nil)

	if _, ok := c.get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("recently used entry should survive")
	}
}

func TestComposeOverlappingLayers(t *testing.T) {
	text := "abcdef"
	base := []layerSpan{{start: 0, end: 6, style: Style{Fg: "1"}}}
	top := []layerSpan{{start: 2, end: 4, style: Style{Fg: "2", Bold: true}}}

	got := compose(text, base, top)
	want := []Segment{
		{Text: "ab", Style: Style{Fg: "1"}},
		{Text: "cd", Style: Style{Fg: "2", Bold: true}},
		{Text: "ef", Style: Style{Fg: "1"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("compose() = %+v, want %+v", got, want)
	}
}

func TestClampSpans(t *testing.T) {
	text := "héllo"
	spans := []layerSpan{
		{start: 0, end: 2},  // splits é
		{start: 3, end: 99}, // clamped to the end
		{start: 4, end: 4},  // empty
	}
	got := clampSpans(text, spans)
	if len(got) != 1 || got[0].start != 3 || got[0].end != len(text) {
		t.Errorf("clampSpans() = %+v", got)
	}
}

func TestThemeByName(t *testing.T) {
	if ThemeByName("light").Name != "light" {
		t.Error("light theme not resolved")
	}
	if ThemeByName("nope").Name != "dark" {
		t.Error("unknown theme should fall back to dark")
	}
	if th := ThemeByName("monokai"); th.chroma == nil {
		t.Error("chroma style names should be accepted")
	}
}

func TestLexerAliases(t *testing.T) {
	tests := []struct {
		alias string
		want  bool // resolves to one of ours
	}{
		{"accesslog", true},
		{"apachelog", true},
		{"clf", true},
		{"apache", false}, // stays with chroma's ApacheConf
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			l := lexers.Get(tt.alias)
			ours := l == AccessLog || l == ApacheLog
			if ours != tt.want {
				t.Errorf("lexers.Get(%q) = %v, ours = %v", tt.alias, l, ours)
			}
		})
	}
}
