package logger

import (
	"context"
	"log/slog"
)

// HandlerEventType defines types of interceptor events
type HandlerEventType string

const (
	// Lifecycle events
	HooksInstalled HandlerEventType = "hooks_installed"
	HooksRemoved   HandlerEventType = "hooks_removed"

	// Classification events
	ExceptionCaught HandlerEventType = "exception_caught"
	ErrorPromoted   HandlerEventType = "error_promoted"
	ErrorIgnored    HandlerEventType = "error_ignored"
	FatalDetected   HandlerEventType = "fatal_detected"

	// Secondary failures
	LogWriteFailed HandlerEventType = "log_write_failed"
)

// AllHandlerEventTypes lists every event type in emission order
var AllHandlerEventTypes = []HandlerEventType{
	HooksInstalled,
	HooksRemoved,
	ExceptionCaught,
	ErrorPromoted,
	ErrorIgnored,
	FatalDetected,
	LogWriteFailed,
}

// EventLogger provides interceptor-specific logging methods. It is
// operator-facing diagnostics only and never replaces the fatal log file.
type EventLogger struct {
	logger *Logger
}

// NewEventLogger creates a new event logger
func NewEventLogger(baseLogger *Logger) *EventLogger {
	return &EventLogger{
		logger: baseLogger.WithComponent("handler"),
	}
}

// LogHooksInstalled logs hook registration
func (el *EventLogger) LogHooksInstalled(ctx context.Context, reserveBytes int, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.Int("memory_reserve_bytes", reserveBytes),
	}
	el.logger.HandlerEvent(ctx, slog.LevelDebug, string(HooksInstalled), append(baseAttrs, attrs...)...)
}

// LogHooksRemoved logs hook removal
func (el *EventLogger) LogHooksRemoved(ctx context.Context, attrs ...slog.Attr) {
	el.logger.HandlerEvent(ctx, slog.LevelDebug, string(HooksRemoved), attrs...)
}

// LogExceptionCaught logs an uncaught failure reaching the interceptor
func (el *EventLogger) LogExceptionCaught(ctx context.Context, code, message string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("code", code),
		slog.String("message", message),
	}
	el.logger.HandlerEvent(ctx, slog.LevelError, string(ExceptionCaught), append(baseAttrs, attrs...)...)
}

// LogErrorPromoted logs a recoverable error raised as an exception
func (el *EventLogger) LogErrorPromoted(ctx context.Context, severity, message, file string, line int, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("severity", severity),
		slog.String("message", message),
		slog.String("file", file),
		slog.Int("line", line),
	}
	el.logger.HandlerEvent(ctx, slog.LevelWarn, string(ErrorPromoted), append(baseAttrs, attrs...)...)
}

// LogErrorIgnored logs a condition left to the default handling
func (el *EventLogger) LogErrorIgnored(ctx context.Context, severity, message string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("severity", severity),
		slog.String("message", message),
	}
	el.logger.HandlerEvent(ctx, slog.LevelDebug, string(ErrorIgnored), append(baseAttrs, attrs...)...)
}

// LogFatalDetected logs a fatal last error found at shutdown
func (el *EventLogger) LogFatalDetected(ctx context.Context, severity, message, file string, line int, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("severity", severity),
		slog.String("message", message),
		slog.String("file", file),
		slog.Int("line", line),
	}
	el.logger.HandlerEvent(ctx, slog.LevelError, string(FatalDetected), append(baseAttrs, attrs...)...)
}

// LogWriteFailed logs a fatal log or response write that could not complete
func (el *EventLogger) LogWriteFailed(ctx context.Context, target string, err error, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("target", target),
		slog.String("error", err.Error()),
	}
	el.logger.HandlerEvent(ctx, slog.LevelError, string(LogWriteFailed), append(baseAttrs, attrs...)...)
}
