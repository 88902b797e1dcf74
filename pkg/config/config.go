package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	UI             UIConfig          `mapstructure:"ui" yaml:"ui"`
	Stream         StreamConfig      `mapstructure:"stream" yaml:"stream"`
	Search         SearchConfig      `mapstructure:"search" yaml:"search"`
	HighlightRules []HighlightRule   `mapstructure:"highlight_rules" yaml:"highlight_rules"`
	Keybindings    map[string]string `mapstructure:"keybindings" yaml:"keybindings"`
	General        GeneralConfig     `mapstructure:"general" yaml:"general"`
}

// UIConfig represents UI-specific configuration
type UIConfig struct {
	Title           string `mapstructure:"title" yaml:"title"`
	Theme           string `mapstructure:"theme" yaml:"theme"`
	Language        string `mapstructure:"language" yaml:"language"`
	Follow          bool   `mapstructure:"follow" yaml:"follow"`
	ShowLineNumbers bool   `mapstructure:"show_line_numbers" yaml:"show_line_numbers"`
	HideTimestamp   bool   `mapstructure:"hide_timestamp" yaml:"hide_timestamp"`
	ANSI            bool   `mapstructure:"ansi" yaml:"ansi"`
	Solid           bool   `mapstructure:"solid" yaml:"solid"`
	FontSize        int    `mapstructure:"font_size" yaml:"font_size"`
	MaxLines        int    `mapstructure:"max_lines" yaml:"max_lines"`
	SelectableLines bool   `mapstructure:"selectable_lines" yaml:"selectable_lines"`
}

// StreamConfig describes the log endpoint and buffering
type StreamConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	Account        string `mapstructure:"account" yaml:"account"`
	Cluster        string `mapstructure:"cluster" yaml:"cluster"`
	TrackingID     string `mapstructure:"tracking_id" yaml:"tracking_id"`
	DebounceMS     int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	MaxRecords     int    `mapstructure:"max_records" yaml:"max_records"`
	ReconnectMaxMS int    `mapstructure:"reconnect_max_ms" yaml:"reconnect_max_ms"`
}

// SearchConfig holds the initial search settings
type SearchConfig struct {
	Mode          string  `mapstructure:"mode" yaml:"mode"`
	Threshold     float64 `mapstructure:"threshold" yaml:"threshold"`
	CaseSensitive bool    `mapstructure:"case_sensitive" yaml:"case_sensitive"`
}

// HighlightRule represents a user highlighting rule
type HighlightRule struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Color   string `mapstructure:"color" yaml:"color"`
	Style   string `mapstructure:"style" yaml:"style"`
}

// GeneralConfig represents general application settings
type GeneralConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			Title:           "Logs",
			Theme:           "dark",
			Language:        "accesslog",
			Follow:          true,
			ShowLineNumbers: true,
			ANSI:            true,
			FontSize:        14,
		},
		Stream: StreamConfig{
			URL:            "ws://localhost:8080/logs",
			DebounceMS:     1000,
			MaxRecords:     10000,
			ReconnectMaxMS: 30000,
		},
		Search: SearchConfig{
			Mode:      string(models.SearchFuzzy),
			Threshold: models.DefaultThreshold,
		},
		HighlightRules: []HighlightRule{
			{
				Name:    "error_keywords",
				Pattern: `(?i)\b(exception|failed|failure|crash|refused|timeout)\b`,
				Color:   "#f44747",
				Style:   "bold",
			},
		},
		Keybindings: map[string]string{
			"search":           "/",
			"escape":           "esc",
			"toggle_view":      "tab",
			"toggle_mode":      "ctrl+r",
			"toggle_follow":    "f",
			"fullscreen":       "z",
			"help":             "?",
			"quit":             "q",
			"scroll_up":        "k",
			"scroll_down":      "j",
			"page_up":          "ctrl+u",
			"page_down":        "ctrl+d",
			"goto_top":         "g",
			"goto_bottom":      "G",
			"toggle_numbers":   "l",
			"toggle_timestamp": "t",
		},
		General: GeneralConfig{
			LogLevel: "info",
		},
	}
}

// Key returns the subscription key configured for the stream
func (c *Config) Key() models.SubscriptionKey {
	return models.SubscriptionKey{
		Account:    c.Stream.Account,
		Cluster:    c.Stream.Cluster,
		TrackingID: c.Stream.TrackingID,
	}
}

// Query returns the initial search query from the search section
func (c *Config) Query() models.SearchQuery {
	return models.SearchQuery{
		Mode:          models.SearchMode(c.Search.Mode),
		Threshold:     c.Search.Threshold,
		CaseSensitive: c.Search.CaseSensitive,
	}.Normalized()
}

// Debounce returns the identity change settle time
func (s StreamConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// ReconnectMax returns the reconnect backoff cap
func (s StreamConfig) ReconnectMax() time.Duration {
	return time.Duration(s.ReconnectMaxMS) * time.Millisecond
}

// Validate reports every problem found in the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.UI.Theme {
	case "", "dark", "light", "monochrome":
	default:
		// chroma style names are resolved at render time
		if strings.ContainsAny(c.UI.Theme, " /") {
			errs = append(errs, fmt.Errorf("ui.theme %q is not a theme name", c.UI.Theme))
		}
	}
	if c.UI.FontSize < 0 || c.UI.MaxLines < 0 {
		errs = append(errs, errors.New("ui.font_size and ui.max_lines must not be negative"))
	}

	if c.Stream.URL != "" {
		u, err := url.Parse(c.Stream.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("stream.url: %w", err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("stream.url scheme must be ws or wss, got %q", u.Scheme))
		}
	}
	if c.Stream.DebounceMS < 0 || c.Stream.MaxRecords < 0 || c.Stream.ReconnectMaxMS < 0 {
		errs = append(errs, errors.New("stream durations and limits must not be negative"))
	}

	switch models.SearchMode(c.Search.Mode) {
	case "", models.SearchFuzzy, models.SearchRegex:
	default:
		errs = append(errs, fmt.Errorf("search.mode must be fuzzy or regex, got %q", c.Search.Mode))
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errs = append(errs, fmt.Errorf("search.threshold must be within [0,1], got %v", c.Search.Threshold))
	}

	for _, rule := range c.HighlightRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("highlight rule %q: %w", rule.Name, err))
		}
	}

	if _, err := ParseLevel(c.General.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel checks a log level name, the empty string means info
func ParseLevel(level string) (string, error) {
	switch strings.ToLower(level) {
	case "":
		return "info", nil
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
		return strings.ToLower(level), nil
	}
	return "", fmt.Errorf("general.log_level %q is not a log level", level)
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	appConfigDir := filepath.Join(configDir, "logview")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(appConfigDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return appConfigDir, nil
}

// Loader reads one configuration file and can watch it for changes
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader prepares a loader for path, or for the default location when
// path is empty.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOGVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, path: path}, nil
}

// Path returns the configuration file path
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file over the defaults. A missing file is created with the
// defaults.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if err := l.v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Save(config, l.path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// Watch reloads the file on every change and passes the result to fn.
func (l *Loader) Watch(fn func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		config := DefaultConfig()
		if err := l.v.Unmarshal(config); err != nil {
			fn(nil, fmt.Errorf("failed to unmarshal config: %w", err))
			return
		}
		fn(config, nil)
	})
	l.v.WatchConfig()
}

// Load loads the configuration from path, or the default location when empty
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Save writes the configuration to path
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("ui", config.UI)
	v.Set("stream", config.Stream)
	v.Set("search", config.Search)
	v.Set("highlight_rules", config.HighlightRules)
	v.Set("keybindings", config.Keybindings)
	v.Set("general", config.General)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetKeybinding returns the key binding for a given action
func (c *Config) GetKeybinding(action string) string {
	if binding, exists := c.Keybindings[action]; exists {
		return binding
	}
	// Return default if not found
	defaults := DefaultConfig()
	return defaults.Keybindings[action]
}
