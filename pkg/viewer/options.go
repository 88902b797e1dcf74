package viewer

import (
	"time"

	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Options configure one viewer widget
type Options struct {
	Key             models.SubscriptionKey
	URL             string
	Follow          bool
	EnableSearch    bool
	SelectableLines bool
	Title           string
	Height          int
	Width           int
	MaxLines        int // caps Height outside fullscreen, 0 = no cap
	FontSize        int
	HideLineNumber  bool
	HideTimestamp   bool
	Language        string
	ANSI            bool
	Solid           bool
	Dark            bool
	Theme           string // overrides Dark when set
	Debounce        time.Duration

	MaxRecords    int
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	Query         models.SearchQuery
	Rules         []config.HighlightRule

	Dialer transport.Dialer
	Logger logrus.FieldLogger
}

const (
	DefaultDebounce      = time.Second
	DefaultReconnectBase = time.Second
	DefaultReconnectMax  = 30 * time.Second
	DefaultFontSize      = 14
	DefaultLanguage      = "accesslog"
)

// DefaultOptions returns the documented widget defaults
func DefaultOptions() Options {
	return Options{
		Follow:        true,
		EnableSearch:  true,
		Height:        20,
		FontSize:      DefaultFontSize,
		Language:      DefaultLanguage,
		ANSI:          true,
		Dark:          true,
		Debounce:      DefaultDebounce,
		ReconnectBase: DefaultReconnectBase,
		ReconnectMax:  DefaultReconnectMax,
		Query:         models.SearchQuery{Mode: models.SearchFuzzy, Threshold: models.DefaultThreshold},
	}
}

// OptionsFromConfig maps the configuration file onto widget options
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Key = cfg.Key()
	opts.URL = cfg.Stream.URL
	opts.Title = cfg.UI.Title
	opts.Follow = cfg.UI.Follow
	opts.SelectableLines = cfg.UI.SelectableLines
	opts.MaxLines = cfg.UI.MaxLines
	opts.HideLineNumber = !cfg.UI.ShowLineNumbers
	opts.HideTimestamp = cfg.UI.HideTimestamp
	opts.ANSI = cfg.UI.ANSI
	opts.Solid = cfg.UI.Solid
	opts.Theme = cfg.UI.Theme
	opts.Dark = cfg.UI.Theme != "light"
	if cfg.UI.Language != "" {
		opts.Language = cfg.UI.Language
	}
	if cfg.UI.FontSize > 0 {
		opts.FontSize = cfg.UI.FontSize
	}
	opts.Debounce = cfg.Stream.Debounce()
	opts.MaxRecords = cfg.Stream.MaxRecords
	if max := cfg.Stream.ReconnectMax(); max > 0 {
		opts.ReconnectMax = max
	}
	opts.Query = cfg.Query()
	opts.Rules = cfg.HighlightRules
	return opts
}

func (o Options) themeName() string {
	if o.Theme != "" {
		return o.Theme
	}
	if o.Dark {
		return "dark"
	}
	return "light"
}

func (o Options) withDefaults() Options {
	if o.Height < 1 {
		o.Height = 1
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = DefaultReconnectBase
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = DefaultReconnectMax
	}
	if o.Dialer == nil {
		o.Dialer = transport.WebsocketDialer{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	o.Query = o.Query.Normalized()
	return o
}

// Backoff returns the reconnect delay after attempt consecutive failures:
// base doubled per failure, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}
