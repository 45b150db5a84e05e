// Package logging provides structured logging infrastructure for taskpilot.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/taskpilot/taskpilot/internal/config"
)

// NewFromConfig builds the process logger from config. When a log file is
// configured, records go to both stderr and the file; the returned closer
// owns the file handle and is nil otherwise.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer

	if cfg.Logging.File != "" {
		file, err := openLogFile(cfg.LogFile(baseDir))
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	handler := newHandler(cfg.Logging.Format, out, parseLevel(cfg.Logging.Level))
	return slog.New(handler), closer, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// NewDefault creates a default logger writing JSON to stderr.
func NewDefault() *slog.Logger {
	return NewWithLevel(slog.LevelInfo)
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewWithLevel creates a stderr JSON logger with the specified level.
func NewWithLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLevel converts config log level to slog.Level.
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
	if format == config.LogFormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// WithExecution returns a logger with execution context.
func WithExecution(logger *slog.Logger, executionID string) *slog.Logger {
	return logger.With("execution_id", executionID)
}

// WithWorkflow returns a logger with workflow context.
func WithWorkflow(logger *slog.Logger, workflowID string) *slog.Logger {
	return logger.With("workflow_id", workflowID)
}

// WithSandbox returns a logger with sandbox context.
func WithSandbox(logger *slog.Logger, sandboxID string) *slog.Logger {
	return logger.With("sandbox_id", sandboxID)
}
