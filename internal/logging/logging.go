// Package logging builds the slog loggers used across orquestator.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stevehiehn/orquestator/internal/config"
)

// NewFromConfig creates a logger writing to stderr and, when configured, to
// the log file as well. The closer is nil when no file is open.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	return newWithWriter(cfg, baseDir, os.Stderr)
}

func newWithWriter(cfg *config.Config, baseDir string, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)

	logPath := cfg.LogFile(baseDir)
	if logPath == "" {
		return slog.New(newHandler(cfg.Logging.Format, w, level)), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	handler := newHandler(cfg.Logging.Format, io.MultiWriter(w, file), level)
	return slog.New(handler), file, nil
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithRun returns a logger with run context.
func WithRun(logger *slog.Logger, runID, workflow string) *slog.Logger {
	return logger.With("run_id", runID, "workflow", workflow)
}

// WithStep returns a logger with step context.
func WithStep(logger *slog.Logger, index int, name, stepType string) *slog.Logger {
	return logger.With("step_index", index, "step", name, "step_type", stepType)
}
