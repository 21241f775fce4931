// Package host models the execution environment the interceptor plugs into:
// hook stacks for uncaught failures and recoverable errors, shutdown
// functions, the reporting mask, the last recorded error and the request
// context. One Runtime is one execution unit, a CLI invocation or a single
// HTTP request.
package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/buffon/errguard/pkg/errors"
)

// ExitFatal is the status an execution unit ends with after a fatal condition
// or an uncaught failure handled by the default handling.
const ExitFatal = 255

// ExceptionHandler receives failures that escaped the execution unit
type ExceptionHandler func(err error)

// ErrorHandler receives recoverable runtime conditions. Returning false hands
// the condition to the default handling.
type ErrorHandler func(ctx context.Context, sev errors.Severity, message, file string, line int) bool

// LastError is the runtime's record of the most recent unhandled condition
type LastError struct {
	Type    errors.Severity `json:"type"`
	Message string          `json:"message"`
	File    string          `json:"file"`
	Line    int             `json:"line"`
}

// Options configures a Runtime
type Options struct {
	// Output receives terminal responses and displayed errors (default os.Stdout)
	Output io.Writer

	// Request is the ambient request context
	Request Request

	// ErrorReporting is the initial reporting mask (default errors.EAll)
	ErrorReporting errors.Severity

	// HideErrors starts the runtime with error display switched off
	HideErrors bool
}

// Runtime is one execution unit
type Runtime struct {
	mu sync.Mutex

	out     io.Writer
	request Request

	exceptionHandlers []ExceptionHandler
	errorHandlers     []ErrorHandler
	shutdown          []func()

	reporting     errors.Severity
	displayErrors bool
	lastError     *LastError

	ran bool
}

// exitSignal unwinds the execution unit on Exit
type exitSignal struct {
	code int
}

// New creates a runtime
func New(opts Options) *Runtime {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrorReporting == 0 {
		opts.ErrorReporting = errors.EAll
	}

	return &Runtime{
		out:           opts.Output,
		request:       opts.Request,
		reporting:     opts.ErrorReporting,
		displayErrors: !opts.HideErrors,
	}
}

// Output returns the writer terminal responses go to
func (rt *Runtime) Output() io.Writer {
	return rt.out
}

// Request returns the ambient request context
func (rt *Runtime) Request() Request {
	return rt.request
}

// SetExceptionHandler pushes h onto the uncaught-failure hook stack
func (rt *Runtime) SetExceptionHandler(h ExceptionHandler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.exceptionHandlers = append(rt.exceptionHandlers, h)
}

// RestoreExceptionHandler pops the current uncaught-failure hook, making the
// previous one (or the default handling) active again. It reports whether a
// hook was removed.
func (rt *Runtime) RestoreExceptionHandler() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := len(rt.exceptionHandlers)
	if n == 0 {
		return false
	}
	rt.exceptionHandlers = rt.exceptionHandlers[:n-1]
	return true
}

// SetErrorHandler pushes h onto the recoverable-error hook stack
func (rt *Runtime) SetErrorHandler(h ErrorHandler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.errorHandlers = append(rt.errorHandlers, h)
}

// RestoreErrorHandler pops the current recoverable-error hook
func (rt *Runtime) RestoreErrorHandler() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := len(rt.errorHandlers)
	if n == 0 {
		return false
	}
	rt.errorHandlers = rt.errorHandlers[:n-1]
	return true
}

// RegisterShutdownFunction appends fn to the functions run when the unit ends.
// Shutdown functions cannot be removed.
func (rt *Runtime) RegisterShutdownFunction(fn func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.shutdown = append(rt.shutdown, fn)
}

// ErrorReporting returns the active reporting mask
func (rt *Runtime) ErrorReporting() errors.Severity {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.reporting
}

// SetErrorReporting replaces the reporting mask and returns the old one
func (rt *Runtime) SetErrorReporting(mask errors.Severity) errors.Severity {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	old := rt.reporting
	rt.reporting = mask
	return old
}

// DisplayErrors reports whether default handling prints conditions to the output
func (rt *Runtime) DisplayErrors() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.displayErrors
}

// SetDisplayErrors switches default error display and returns the old value
func (rt *Runtime) SetDisplayErrors(on bool) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	old := rt.displayErrors
	rt.displayErrors = on
	return old
}

// LastError returns a copy of the last recorded condition, or nil
func (rt *Runtime) LastError() *LastError {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.lastError == nil {
		return nil
	}
	le := *rt.lastError
	return &le
}

// ClearLastError forgets the last recorded condition
func (rt *Runtime) ClearLastError() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.lastError = nil
}

// Exit ends the execution unit with the given status. Shutdown functions still
// run unless Exit is called from one of them. Exit must be called on the
// goroutine executing Run.
func (rt *Runtime) Exit(code int) {
	panic(exitSignal{code: code})
}

// Trigger reports a recoverable condition located at the caller
func (rt *Runtime) Trigger(ctx context.Context, sev errors.Severity, message string) {
	_, file, line, _ := runtime.Caller(1)
	rt.TriggerError(ctx, sev, message, file, line)
}

// TriggerError reports a runtime condition. Unhandleable severities end the
// unit immediately; others go to the current error hook and, when it declines,
// to the default handling.
func (rt *Runtime) TriggerError(ctx context.Context, sev errors.Severity, message, file string, line int) {
	if sev.IsUnhandleable() {
		rt.Fatal(sev, message, file, line)
		return
	}

	if h := rt.currentErrorHandler(); h != nil {
		if h(ctx, sev, message, file, line) {
			return
		}
	}

	rt.record(sev, message, file, line)
	if rt.ErrorReporting().Includes(sev) {
		rt.display(sev, message, file, line)
	}

	if sev == errors.EUserError || sev == errors.ERecoverableError {
		rt.Exit(ExitFatal)
	}
}

// Fatal records a fatal condition such as memory exhaustion or an exceeded
// time limit and ends the unit.
func (rt *Runtime) Fatal(sev errors.Severity, message, file string, line int) {
	rt.record(sev, message, file, line)
	rt.display(sev, message, file, line)
	rt.Exit(ExitFatal)
}

// Run executes main as the body of the execution unit and returns its exit
// status. A panic escaping main is delivered to the current exception hook;
// shutdown functions run afterwards in registration order. Run is one-shot.
func (rt *Runtime) Run(ctx context.Context, main func(ctx context.Context)) int {
	rt.mu.Lock()
	if rt.ran {
		rt.mu.Unlock()
		panic("host: Runtime.Run called twice")
	}
	rt.ran = true
	rt.mu.Unlock()

	ctx = NewContext(ctx, rt)

	code := 0
	exit, failure := call(func() { main(ctx) })
	switch {
	case exit != nil:
		code = exit.code
	case failure != nil:
		code = rt.uncaught(failure)
	}

	return rt.runShutdown(code)
}

// uncaught delivers err to the current exception hook
func (rt *Runtime) uncaught(err *errors.HandlerError) int {
	h := rt.currentExceptionHandler()
	if h == nil {
		return rt.defaultUncaught(err)
	}

	exit, again := call(func() { h(err) })
	switch {
	case exit != nil:
		return exit.code
	case again != nil:
		return rt.defaultUncaught(again)
	}
	return ExitFatal
}

// defaultUncaught turns an unhandled failure into a fatal last error
func (rt *Runtime) defaultUncaught(err *errors.HandlerError) int {
	msg := "Uncaught " + errors.Describe(err)
	rt.record(errors.EError, msg, err.File, err.Line)
	rt.display(errors.EError, msg, err.File, err.Line)
	return ExitFatal
}

func (rt *Runtime) runShutdown(code int) int {
	for i := 0; ; i++ {
		rt.mu.Lock()
		if i >= len(rt.shutdown) {
			rt.mu.Unlock()
			break
		}
		fn := rt.shutdown[i]
		rt.mu.Unlock()

		exit, failure := call(fn)
		if exit != nil {
			return exit.code
		}
		if failure != nil {
			return rt.uncaught(failure)
		}
	}
	return code
}

func (rt *Runtime) currentExceptionHandler() ExceptionHandler {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if n := len(rt.exceptionHandlers); n > 0 {
		return rt.exceptionHandlers[n-1]
	}
	return nil
}

func (rt *Runtime) currentErrorHandler() ErrorHandler {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if n := len(rt.errorHandlers); n > 0 {
		return rt.errorHandlers[n-1]
	}
	return nil
}

func (rt *Runtime) record(sev errors.Severity, message, file string, line int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.lastError = &LastError{Type: sev, Message: message, File: file, Line: line}
}

func (rt *Runtime) display(sev errors.Severity, message, file string, line int) {
	if !rt.DisplayErrors() {
		return
	}
	fmt.Fprintf(rt.out, "\n%s: %s in %s on line %d\n", errors.Name(sev), message, file, line)
}

// call runs fn, converting an Exit into exit and any other panic into failure
func call(fn func()) (exit *exitSignal, failure *errors.HandlerError) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if sig, ok := r.(exitSignal); ok {
			exit = &sig
			return
		}
		failure = errors.FromPanic(r)
	}()

	fn()
	return nil, nil
}
