package parser

import (
	"regexp"
	"strings"

	"github.com/loganalyzer/logview/pkg/models"
	"github.com/valyala/fastjson"
	"gopkg.in/yaml.v3"
)

// Languages reported by Detect
const (
	LanguageJSON      = "json"
	LanguageYAML      = "yaml"
	LanguageApacheLog = "apachelog"
	LanguageAccessLog = "accesslog"
)

// LogParser inspects raw log lines
type LogParser struct {
	timestampPatterns []*regexp.Regexp
	levelPrefix       *regexp.Regexp
	apache            *regexp.Regexp
}

// New creates a new LogParser
func New() *LogParser {
	return &LogParser{
		timestampPatterns: compileTimestampPatterns(),
		levelPrefix:       regexp.MustCompile(`(?i)(^|\s)\[?(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|PANIC)\]?:?\s`),
		apache:            regexp.MustCompile(`^\S+ \S+ \S+ \[[^\]]+\] "[A-Z]+ [^"]*" \d{3} (?:\d+|-)`),
	}
}

// Detect guesses the syntax of a plain (ANSI-stripped) log line.
func (p *LogParser) Detect(text string) string {
	trimmed := strings.TrimSpace(text)
	switch {
	case p.isJSON(trimmed):
		return LanguageJSON
	case p.apache.MatchString(trimmed):
		return LanguageApacheLog
	case p.isYAML(trimmed):
		return LanguageYAML
	}
	return LanguageAccessLog
}

func (p *LogParser) isJSON(trimmed string) bool {
	if !(strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) &&
		!(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		return false
	}
	return fastjson.Validate(trimmed) == nil
}

// isYAML requires key: value structure with at least two keys so that a plain
// "INFO: started" line is not mistaken for a document.
func (p *LogParser) isYAML(trimmed string) bool {
	if !strings.Contains(trimmed, ": ") || p.levelPrefix.MatchString(trimmed) {
		return false
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return false
	}
	return len(parsed) >= 2
}

// ExtractTimestamp finds the first recognizable timestamp in a raw line.
func (p *LogParser) ExtractTimestamp(text string) (models.Timestamp, bool) {
	for _, pattern := range p.timestampPatterns {
		if match := pattern.FindString(text); match != "" {
			ts := models.TextTimestamp(match)
			if !ts.Time.IsZero() {
				return ts, true
			}
		}
	}
	return models.Timestamp{}, false
}

// compileTimestampPatterns compiles regex patterns for timestamp detection
func compileTimestampPatterns() []*regexp.Regexp {
	patterns := []string{
		// ISO 8601
		`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`,
		// Common log formats
		`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`,
		`\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}`, // Apache
		`\w{3} \s?\d{1,2} \d{2}:\d{2}:\d{2} \d{4}`,      // Unix date
		`\w{3} \s?\d{1,2} \d{2}:\d{2}:\d{2}`,            // Syslog
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
