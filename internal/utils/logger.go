// internal/utils/logger.go

package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

// LogConfig selects the handler and level of the process logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // text or json
	Color     bool   `yaml:"color"`
	AddSource bool   `yaml:"add_source"`
}

var (
	rootMu     sync.RWMutex
	rootLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    !cfg.Color,
		})
	}
	return slog.New(handler)
}

// SetupLogger installs the process-wide logger and returns it.
func SetupLogger(cfg LogConfig) *slog.Logger {
	logger := NewLogger(os.Stderr, cfg)
	rootMu.Lock()
	rootLogger = logger
	rootMu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// GetLogger returns the process-wide logger.
func GetLogger() *slog.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return rootLogger
}

// NewComponentLogger returns the process logger tagged with a component name.
func NewComponentLogger(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// DiscardLogger returns a logger that drops everything. Useful in tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
