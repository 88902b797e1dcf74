package highlighter

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// logRules tokenizes the things worth coloring in free-form application and
// access logs. Rules are tried in order at each position.
func logRules() []chroma.Rule {
	return []chroma.Rule{
		{Pattern: `\s+`, Type: chroma.TextWhitespace},
		{Pattern: `\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`, Type: chroma.LiteralDate},
		{Pattern: `\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`, Type: chroma.LiteralDate},
		{Pattern: `\[\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}\]`, Type: chroma.LiteralDate},
		{Pattern: `(?i)\b(?:ERROR|ERR|FATAL|PANIC|CRIT(?:ICAL)?)\b`, Type: chroma.KeywordReserved},
		{Pattern: `(?i)\b(?:WARN(?:ING)?)\b`, Type: chroma.KeywordPseudo},
		{Pattern: `(?i)\b(?:INFO|NOTICE)\b`, Type: chroma.KeywordConstant},
		{Pattern: `(?i)\b(?:DEBUG|TRACE)\b`, Type: chroma.KeywordType},
		{Pattern: `https?://[^\s"']+`, Type: chroma.LiteralStringOther},
		{Pattern: `\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`, Type: chroma.NameLabel},
		{Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?\b`, Type: chroma.NameConstant},
		{Pattern: `\b(?:GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS|CONNECT|TRACE)\b`, Type: chroma.NameFunction},
		{Pattern: `\b2\d{2}\b`, Type: chroma.GenericInserted},
		{Pattern: `\b3\d{2}\b`, Type: chroma.GenericOutput},
		{Pattern: `\b4\d{2}\b`, Type: chroma.GenericDeleted},
		{Pattern: `\b5\d{2}\b`, Type: chroma.GenericError},
		{Pattern: `"(?:[^"\\]|\\.)*"`, Type: chroma.LiteralString},
		{Pattern: `\b\d+(?:\.\d+)?(?:ms|s|us|ns|[KMG]i?B)?\b`, Type: chroma.LiteralNumber},
		{Pattern: `[{}\[\]]`, Type: chroma.Punctuation},
		{Pattern: `\w+`, Type: chroma.Text},
		{Pattern: `.`, Type: chroma.Text},
	}
}

// AccessLog highlights generic application and access logs
var AccessLog = lexers.Register(chroma.MustNewLexer(
	&chroma.Config{
		Name:      "accesslog",
		Aliases:   []string{"access-log", "applog", "log"},
		Filenames: []string{"*.log"},
	},
	func() chroma.Rules {
		return chroma.Rules{"root": logRules()}
	},
))

// ApacheLog highlights Apache common and combined log format
var ApacheLog = lexers.Register(chroma.MustNewLexer(
	&chroma.Config{
		Name:    "apachelog",
		Aliases: []string{"combined", "clf"},
	},
	func() chroma.Rules {
		rules := []chroma.Rule{
			// "METHOD path protocol"
			{Pattern: `(")([A-Z]+)( )([^\s"]*)([^"]*)(")`, Type: chroma.ByGroups(
				chroma.Punctuation, chroma.NameFunction, chroma.TextWhitespace,
				chroma.LiteralStringOther, chroma.Comment, chroma.Punctuation,
			)},
		}
		return chroma.Rules{"root": append(rules, logRules()...)}
	},
))
