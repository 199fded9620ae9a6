// Package logging provides component loggers backed by logrus.
//
// All component loggers share one underlying logrus.Logger so that a
// configuration change applied with Configure reaches loggers created
// before the configuration was loaded.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvLevel is the environment variable that overrides the configured level.
const EnvLevel = "ENQUOTE_LOG_LEVEL"

var (
	root    = newRoot()
	loggers = make(map[string]*logrus.Entry)
	mu      sync.Mutex
	logFile *os.File
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(resolveLevel(""))
	l.SetFormatter(formatter(""))
	return l
}

// NewLogger returns the logger for a specific component.
// It uses a singleton pattern per component.
func NewLogger(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := root.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure applies cfg to every component logger.
// The ENQUOTE_LOG_LEVEL environment variable takes precedence over cfg.Level.
func Configure(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	root.SetLevel(resolveLevel(cfg.Level))
	root.SetFormatter(formatter(cfg.Format))

	if cfg.File == "" {
		return setOutput(os.Stderr, nil)
	}

	path := expandPath(cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	return setOutput(f, f)
}

// SetOutput redirects all component loggers to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	_ = setOutput(w, nil)
}

// Root returns the shared logger. Intended for hosts that need to adjust
// hooks or inspect the level.
func Root() *logrus.Logger {
	return root
}

// setOutput swaps the output writer, closing a previously opened log file.
// Caller holds mu.
func setOutput(w io.Writer, f *os.File) error {
	root.SetOutput(w)
	var err error
	if logFile != nil && logFile != f {
		err = logFile.Close()
	}
	logFile = f
	return err
}

func resolveLevel(configured string) logrus.Level {
	levelStr := "info"
	if env := os.Getenv(EnvLevel); env != "" {
		levelStr = env
	} else if configured != "" {
		levelStr = configured
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func formatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
