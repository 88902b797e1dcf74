// Package logging configures the logrus logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/loganalyzer/logview/pkg/config"
	"github.com/sirupsen/logrus"
)

// Setup builds a logger from the general config section. The terminal UI
// owns the screen, so when tui is set output goes to general.log_file (or
// logview.log in the config directory) instead of stderr. The returned
// closer releases the file.
func Setup(general config.GeneralConfig, tui bool) (*logrus.Logger, io.Closer, error) {
	level, err := config.ParseLevel(general.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if !tui && general.LogFile == "" {
		logger.SetOutput(os.Stderr)
		return logger, io.NopCloser(nil), nil
	}

	path := general.LogFile
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, "logview.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(f)
	return logger, f, nil
}

// Entry is a log entry forwarded to the screen
type Entry struct {
	Level   logrus.Level
	Message string
	Time    time.Time
}

// StatusHook forwards warnings and errors to a channel so the UI can show
// them. Entries are dropped when nobody keeps up.
type StatusHook struct {
	ch chan Entry
}

// NewStatusHook creates a hook buffering up to size entries
func NewStatusHook(size int) *StatusHook {
	return &StatusHook{ch: make(chan Entry, size)}
}

// Entries returns the forwarded entries
func (h *StatusHook) Entries() <-chan Entry {
	return h.ch
}

// Levels implements logrus.Hook
func (h *StatusHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

// Fire implements logrus.Hook
func (h *StatusHook) Fire(entry *logrus.Entry) error {
	select {
	case h.ch <- Entry{Level: entry.Level, Message: entry.Message, Time: entry.Time}:
	default:
	}
	return nil
}

// Component returns logger scoped to one component
func Component(logger logrus.FieldLogger, name string) logrus.FieldLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", name)
}
