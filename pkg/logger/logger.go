// Package logger provides structured logging for errguard with handler event tracking
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/term"
)

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// Version is reported with every log line
var Version = "0.3.0"

// Logger wraps slog.Logger with errguard-specific functionality
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     string
	Format    string // "json", "text" or "auto"
	Output    string // "stdout", "stderr", or file path
	Component string // Component name for logs

	// Writer overrides Output when set
	Writer io.Writer
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch LogLevel(s) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new logger instance
func New(cfg Config) (*Logger, error) {
	level := ParseLevel(cfg.Level)

	writer := cfg.Writer
	if writer == nil {
		output := cfg.Output
		if output == "" {
			output = "stdout"
		}

		switch output {
		case "stdout":
			writer = os.Stdout
		case "stderr":
			writer = os.Stderr
		default:
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			writer = file
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if resolveFormat(cfg.Format, writer) == FormatJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler).With(
		"service", "errguard",
		"component", cfg.Component,
		"version", Version,
	)

	return &Logger{
		Logger:    logger,
		component: cfg.Component,
	}, nil
}

// resolveFormat picks text for terminals and JSON otherwise when format is auto
func resolveFormat(format string, w io.Writer) string {
	switch format {
	case FormatJSON:
		return FormatJSON
	case FormatAuto:
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return FormatText
		}
		return FormatJSON
	default:
		return FormatText
	}
}

// Initialize builds the global logger from cfg and installs it. Empty fields
// take defaults. It may be called again to replace the global logger once the
// full configuration is known.
func Initialize(cfg Config) (*Logger, error) {
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
	if cfg.Format == "" {
		cfg.Format = FormatText
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Component == "" {
		cfg.Component = "errguard"
	}

	logger, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	logger.Debug("logger initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"output", cfg.Output,
	)

	return logger, nil
}

// Global returns the global logger instance
func Global() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger == nil {
		// Fallback to default logger if not initialized
		logger, _ = New(Config{
			Level:     "info",
			Format:    FormatText,
			Output:    "stderr",
			Component: "errguard",
		})
	}
	return logger
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	logger, _ := New(Config{Writer: io.Discard, Level: "error"})
	return logger
}

// WithComponent returns a new logger with the component name set
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("component", component),
		component: component,
	}
}

// WithRequestID returns a new logger with a request ID for tracing
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("request_id", requestID),
		component: l.component,
	}
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// HandlerEvent logs an interceptor event with standard fields
func (l *Logger) HandlerEvent(ctx context.Context, level slog.Level, eventType string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event_type", eventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
		slog.String("category", "handler"),
	}

	if _, file, line, ok := runtimeCaller(2); ok {
		baseAttrs = append(baseAttrs,
			slog.String("source_file", file),
			slog.Int("source_line", line),
		)
	}

	l.LogAttrs(ctx, level, "handler event", append(baseAttrs, attrs...)...)
}

// ErrorEvent logs an error with context
func (l *Logger) ErrorEvent(ctx context.Context, message string, err error, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
	}

	l.LogAttrs(ctx, slog.LevelError, message, append(baseAttrs, attrs...)...)
}

// runtimeCaller captures caller information for stack traces
func runtimeCaller(skip int) (pc uintptr, file string, line int, ok bool) {
	pc, file, line, ok = runtime.Caller(skip + 1)
	if ok {
		file = filepath.Base(file)
	}
	return
}

// Convenience methods that use global logger

// Info logs an info message
func Info(msg string, args ...any) {
	Global().Info(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Global().Debug(msg, args...)
}
