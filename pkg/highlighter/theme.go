package highlighter

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// Theme represents a color theme
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Colors     map[string]lipgloss.Color

	chroma *chroma.Style // set when the theme is a chroma style
}

// Predefined themes
var (
	DarkTheme = Theme{
		Name:       "dark",
		Background: lipgloss.Color("#1e1e1e"),
		Foreground: lipgloss.Color("#d4d4d4"),
		Colors: map[string]lipgloss.Color{
			"timestamp":   lipgloss.Color("#4fc1ff"),
			"level_debug": lipgloss.Color("#9cdcfe"),
			"level_info":  lipgloss.Color("#4ec9b0"),
			"level_warn":  lipgloss.Color("#dcdcaa"),
			"level_error": lipgloss.Color("#f44747"),
			"ip":          lipgloss.Color("#ce9178"),
			"status_2xx":  lipgloss.Color("#4ec9b0"),
			"status_3xx":  lipgloss.Color("#dcdcaa"),
			"status_4xx":  lipgloss.Color("#ffa500"),
			"status_5xx":  lipgloss.Color("#f44747"),
			"uuid":        lipgloss.Color("#d7ba7d"),
			"url":         lipgloss.Color("#569cd6"),
			"number":      lipgloss.Color("#b5cea8"),
			"string":      lipgloss.Color("#ce9178"),
			"keyword":     lipgloss.Color("#c586c0"),
			"json":        lipgloss.Color("#6a9955"),
			"comment":     lipgloss.Color("#6a6a6a"),
			"gutter":      lipgloss.Color("#5a5a5a"),
		},
	}

	LightTheme = Theme{
		Name:       "light",
		Background: lipgloss.Color("#ffffff"),
		Foreground: lipgloss.Color("#333333"),
		Colors: map[string]lipgloss.Color{
			"timestamp":   lipgloss.Color("#0969da"),
			"level_debug": lipgloss.Color("#656d76"),
			"level_info":  lipgloss.Color("#1f883d"),
			"level_warn":  lipgloss.Color("#9a6700"),
			"level_error": lipgloss.Color("#d1242f"),
			"ip":          lipgloss.Color("#0550ae"),
			"status_2xx":  lipgloss.Color("#1f883d"),
			"status_3xx":  lipgloss.Color("#9a6700"),
			"status_4xx":  lipgloss.Color("#bc4c00"),
			"status_5xx":  lipgloss.Color("#d1242f"),
			"uuid":        lipgloss.Color("#6639ba"),
			"url":         lipgloss.Color("#0969da"),
			"number":      lipgloss.Color("#0550ae"),
			"string":      lipgloss.Color("#0a3069"),
			"keyword":     lipgloss.Color("#8250df"),
			"json":        lipgloss.Color("#1f883d"),
			"comment":     lipgloss.Color("#8c959f"),
			"gutter":      lipgloss.Color("#8c959f"),
		},
	}

	MonochromeTheme = Theme{
		Name:       "monochrome",
		Background: lipgloss.Color("#000000"),
		Foreground: lipgloss.Color("#ffffff"),
		Colors: map[string]lipgloss.Color{
			"level_debug": lipgloss.Color("#808080"),
			"comment":     lipgloss.Color("#808080"),
			"gutter":      lipgloss.Color("#808080"),
		},
	}
)

// tokenKeys maps the token types emitted by the log lexers to theme color keys.
var tokenKeys = map[chroma.TokenType]string{
	chroma.LiteralDate:        "timestamp",
	chroma.KeywordType:        "level_debug",
	chroma.KeywordConstant:    "level_info",
	chroma.KeywordPseudo:      "level_warn",
	chroma.KeywordReserved:    "level_error",
	chroma.NameConstant:       "ip",
	chroma.GenericInserted:    "status_2xx",
	chroma.GenericOutput:      "status_3xx",
	chroma.GenericDeleted:     "status_4xx",
	chroma.GenericError:       "status_5xx",
	chroma.NameLabel:          "uuid",
	chroma.LiteralStringOther: "url",
	chroma.NameFunction:       "keyword",
	chroma.NameTag:            "keyword",
	chroma.Punctuation:        "json",
}

// categoryKeys is the fallback for lexers that are not ours (yaml, json, ...).
var categoryKeys = map[chroma.TokenType]string{
	chroma.Keyword:       "keyword",
	chroma.LiteralString: "string",
	chroma.LiteralNumber: "number",
	chroma.Comment:       "comment",
}

// boldTokens are rendered bold regardless of theme
var boldTokens = map[chroma.TokenType]bool{
	chroma.KeywordReserved: true,
	chroma.KeywordPseudo:   true,
	chroma.KeywordConstant: true,
	chroma.KeywordType:     true,
}

// ThemeByName resolves one of the built-in themes or any chroma style name.
// Unknown names fall back to the dark theme.
func ThemeByName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return LightTheme
	case "monochrome", "mono":
		return MonochromeTheme
	case "", "dark":
		return DarkTheme
	}
	if st, ok := styles.Registry[strings.ToLower(name)]; ok {
		th := DarkTheme
		th.Name = name
		th.chroma = st
		return th
	}
	return DarkTheme
}

// ThemeNames returns the names accepted by ThemeByName besides chroma styles
func ThemeNames() []string {
	return []string{"dark", "light", "monochrome"}
}

// Color returns a theme color by key, or the foreground when unset.
func (t Theme) Color(key string) lipgloss.Color {
	if c, ok := t.Colors[key]; ok {
		return c
	}
	return t.Foreground
}

// tokenStyle returns the style for a chroma token type, ok is false when the
// token should stay unstyled.
func (t Theme) tokenStyle(tt chroma.TokenType) (Style, bool) {
	if t.chroma != nil {
		entry := t.chroma.Get(tt)
		if !entry.Colour.IsSet() && entry.Bold != chroma.Yes {
			return Style{}, false
		}
		st := Style{Bold: entry.Bold == chroma.Yes, Italic: entry.Italic == chroma.Yes}
		if entry.Colour.IsSet() {
			st.Fg = entry.Colour.String()
		}
		return st, true
	}

	key, ok := tokenKeys[tt]
	if !ok {
		key, ok = tokenKeys[tt.SubCategory()]
	}
	if !ok {
		key, ok = categoryKeys[tt.SubCategory()]
	}
	if !ok {
		key, ok = categoryKeys[tt.Category()]
	}
	if !ok {
		return Style{}, false
	}
	color, ok := t.Colors[key]
	if !ok && !boldTokens[tt] {
		return Style{}, false
	}
	return Style{Fg: string(color), Bold: boldTokens[tt]}, true
}
