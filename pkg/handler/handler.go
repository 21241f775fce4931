// Package handler intercepts uncaught failures, recoverable runtime errors and
// fatal conditions of a host.Runtime. Every serious condition is converted to
// an errors.HandlerError, persisted as one block in the fatal log and answered
// with a fixed JSON failure response.
//
// Register installs the hooks in a fixed order: the exception hook first, the
// error hook second, then the shutdown function. Register and Unregister are
// idempotent.
package handler

import (
	"bytes"
	"context"
	"sync"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/fatallog"
	"github.com/buffon/errguard/pkg/host"
	"github.com/buffon/errguard/pkg/logger"
	"github.com/buffon/errguard/pkg/metrics"
)

// DefaultMemoryReserveSize is the number of bytes held back for the fatal path
const DefaultMemoryReserveSize = 262144

// ExitFailure is the status the uncaught and fatal paths end the unit with
const ExitFailure = 1

// Config configures a Handler
type Config struct {
	// MemoryReserveSize is the size of the reserve buffer in bytes. Zero
	// disables the reserve.
	MemoryReserveSize int

	// LogRoot is the directory holding fatal_log.txt
	LogRoot string
}

// DefaultConfig returns the default handler configuration
func DefaultConfig() Config {
	return Config{
		MemoryReserveSize: DefaultMemoryReserveSize,
		LogRoot:           ".",
	}
}

// Metrics receives interceptor activity
type Metrics interface {
	RecordEvent(kind string)
	RecordLogWrite(ok bool)
	RecordResponse()
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)  {}
func (nopMetrics) RecordLogWrite(bool) {}
func (nopMetrics) RecordResponse()     {}

// Option configures optional Handler dependencies
type Option func(*Handler)

// WithLogger sets the diagnostic logger
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) {
		h.events = logger.NewEventLogger(l)
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithWriter replaces the fatal log writer derived from Config.LogRoot
func WithWriter(w *fatallog.Writer) Option {
	return func(h *Handler) {
		h.writer = w
	}
}

// Handler is the interceptor bound to one runtime
type Handler struct {
	cfg     Config
	rt      *host.Runtime
	writer  *fatallog.Writer
	events  *logger.EventLogger
	metrics Metrics

	mu                 sync.Mutex
	registered         bool
	shutdownRegistered bool
	memoryReserve      []byte
}

// New creates a handler for rt
func New(rt *host.Runtime, cfg Config, opts ...Option) *Handler {
	if cfg.MemoryReserveSize < 0 {
		cfg.MemoryReserveSize = 0
	}
	if cfg.LogRoot == "" {
		cfg.LogRoot = "."
	}

	h := &Handler{
		cfg:     cfg,
		rt:      rt,
		writer:  fatallog.New(cfg.LogRoot),
		events:  logger.NewEventLogger(logger.Discard()),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Runtime returns the runtime the handler is bound to
func (h *Handler) Runtime() *host.Runtime {
	return h.rt
}

// Registered reports whether the hooks are currently installed
func (h *Handler) Registered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registered
}

// Register switches off the runtime's error display and installs the hooks.
// The error hook must go in after the exception hook. The shutdown function is
// installed once per handler since the runtime cannot remove it.
func (h *Handler) Register() {
	h.mu.Lock()
	if h.registered {
		h.mu.Unlock()
		return
	}
	h.registered = true
	addShutdown := !h.shutdownRegistered
	h.shutdownRegistered = true
	if h.cfg.MemoryReserveSize > 0 {
		h.memoryReserve = bytes.Repeat([]byte{'x'}, h.cfg.MemoryReserveSize)
	}
	h.mu.Unlock()

	h.rt.SetDisplayErrors(false)
	h.rt.SetExceptionHandler(h.HandleException)
	h.rt.SetErrorHandler(h.HandleError)
	if addShutdown {
		h.rt.RegisterShutdownFunction(h.HandleFatalError)
	}

	h.events.LogHooksInstalled(context.Background(), h.cfg.MemoryReserveSize)
}

// Unregister restores the runtime's previous exception and error hooks. It is
// safe to call without a prior Register.
func (h *Handler) Unregister() {
	h.mu.Lock()
	if !h.registered {
		h.mu.Unlock()
		return
	}
	h.registered = false
	h.mu.Unlock()

	h.rt.RestoreErrorHandler()
	h.rt.RestoreExceptionHandler()

	h.events.LogHooksRemoved(context.Background())
}

// HandleException is the uncaught-failure hook. It unregisters, logs err,
// answers with the failure response and ends the unit with ExitFailure.
// Failures while logging are swallowed.
func (h *Handler) HandleException(err error) {
	h.Unregister()
	h.metrics.RecordEvent(metrics.KindException)

	h.safely(func() {
		rec := h.NewRecord(err)
		h.events.LogExceptionCaught(context.Background(), rec.Code, messageOf(err))
		if lerr := h.LogError(rec); lerr != nil {
			h.events.LogWriteFailed(context.Background(), h.writer.Path(), lerr)
		}
	})

	h.ReturnMsg()
}

// HandleError is the recoverable-error hook. Conditions outside the reporting
// mask and informational severities are left to the runtime (false). Anything
// else is raised as a *errors.HandlerError panic, or, when ctx is inside a
// string conversion, sent straight to HandleException.
func (h *Handler) HandleError(ctx context.Context, sev errors.Severity, message, file string, line int) bool {
	if !h.rt.ErrorReporting().Includes(sev) || sev.IsInformational() {
		h.metrics.RecordEvent(metrics.KindErrorIgnored)
		h.events.LogErrorIgnored(ctx, sev.String(), message)
		return false
	}

	exc := errors.NewBuilder(sev).
		WithMessage(message).
		WithCode(int(sev)).
		WithLocation(file, line).
		Build()

	h.metrics.RecordEvent(metrics.KindErrorPromoted)
	h.events.LogErrorPromoted(ctx, sev.String(), message, file, line)

	if host.IsStringifying(ctx) {
		h.HandleException(exc)
		h.rt.Exit(ExitFailure)
	}

	panic(exc)
}

// HandleFatalError is the shutdown function. It releases the reserve buffer
// and, when the runtime's last error is fatal, logs it and answers with the
// failure response.
func (h *Handler) HandleFatalError() {
	h.mu.Lock()
	h.memoryReserve = nil
	h.mu.Unlock()

	last := h.rt.LastError()
	if last == nil || !last.Type.IsFatal() {
		return
	}

	exc := errors.NewBuilder(last.Type).
		WithMessage(last.Message).
		WithCode(int(last.Type)).
		WithLocation(last.File, last.Line).
		WithStack(nil).
		Build()

	h.metrics.RecordEvent(metrics.KindFatal)
	h.events.LogFatalDetected(context.Background(), last.Type.String(), last.Message, last.File, last.Line)

	if err := h.LogException(exc); err != nil {
		h.events.LogWriteFailed(context.Background(), h.writer.Path(), err)
	}
	h.ReturnMsg()
}

// reserveSize reports the size of the currently held reserve buffer
func (h *Handler) reserveSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.memoryReserve)
}

// safely runs fn and drops any panic it raises
func (h *Handler) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.events.LogWriteFailed(context.Background(), h.writer.Path(), errors.FromPanic(r))
		}
	}()
	fn()
}
