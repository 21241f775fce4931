package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// HandlerError is the single representation for uncaught failures, promoted
// recoverable errors and fatal conditions.
type HandlerError struct {
	Message  string       `json:"message"`
	Code     int          `json:"code"`
	Severity Severity     `json:"severity"`
	File     string       `json:"file"`
	Line     int          `json:"line"`
	Stack    []StackFrame `json:"stack,omitempty"`

	previous error
}

// Error implements the error interface. It returns the message only; the
// previous error is reported separately when the chain is walked.
func (e *HandlerError) Error() string {
	return e.Message
}

// Unwrap returns the previous error
func (e *HandlerError) Unwrap() error {
	return e.previous
}

// Previous returns the error this one was raised from, or nil
func (e *HandlerError) Previous() error {
	return e.previous
}

// String returns the full textual form: header line with location followed by
// the captured stack trace.
func (e *HandlerError) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "HandlerError: %s in %s:%d\n", e.Message, e.File, e.Line)
	sb.WriteString("Stack trace:\n")
	for i, f := range e.Stack {
		fmt.Fprintf(&sb, "#%d %s(%d): %s()\n", i, f.File, f.Line, f.Function)
	}
	fmt.Fprintf(&sb, "#%d {main}", len(e.Stack))

	return sb.String()
}

// Describe returns the full textual form of any error: String for
// *HandlerError, otherwise the dynamic type and message.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if he, ok := err.(*HandlerError); ok {
		return he.String()
	}
	return fmt.Sprintf("%T: %s", err, err.Error())
}

// captureStack captures the current call stack, skipping the specified number of frames
func captureStack(skip int) []StackFrame {
	var frames []StackFrame

	// Capture up to 32 frames
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs) // +2 to skip runtime.Callers and captureStack
	if n == 0 {
		return frames
	}

	callers := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callers.Next()
		if frame.Function == "main.main" {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
			break
		}

		if !strings.HasPrefix(frame.Function, "runtime.") {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}

		if !more {
			break
		}
	}

	return frames
}

// panicStack returns the frames below the innermost runtime.gopanic, i.e. the
// stack of the code that panicked. It falls back to the plain stack when called
// outside of a deferred recovery.
func panicStack(skip int) []StackFrame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	callers := runtime.CallersFrames(pcs[:n])

	var (
		frames     []StackFrame
		afterPanic bool
	)
	for {
		frame, more := callers.Next()
		if frame.Function == "runtime.gopanic" {
			frames = frames[:0]
			afterPanic = true
		} else if !strings.HasPrefix(frame.Function, "runtime.") {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		if frame.Function == "main.main" || !more {
			break
		}
	}

	if !afterPanic {
		return captureStack(skip + 1)
	}
	return frames
}

// Builder constructs HandlerError instances with a fluent API
type Builder struct {
	err *HandlerError
}

func newBuilder(sev Severity, skip int) *Builder {
	_, file, line, _ := runtime.Caller(skip + 1)

	return &Builder{
		err: &HandlerError{
			Message:  Name(sev),
			Code:     int(sev),
			Severity: sev,
			File:     file,
			Line:     line,
			Stack:    captureStack(skip + 1),
		},
	}
}

// NewBuilder creates a builder for the given severity. Location and stack
// default to the caller.
func NewBuilder(sev Severity) *Builder {
	return newBuilder(sev, 1)
}

// WithMessage sets the message
func (b *Builder) WithMessage(msg string) *Builder {
	b.err.Message = msg
	return b
}

// WithMessagef sets a formatted message
func (b *Builder) WithMessagef(format string, args ...any) *Builder {
	b.err.Message = fmt.Sprintf(format, args...)
	return b
}

// WithCode overrides the user code, which defaults to the severity value
func (b *Builder) WithCode(code int) *Builder {
	b.err.Code = code
	return b
}

// WithLocation sets the file and line explicitly
func (b *Builder) WithLocation(file string, line int) *Builder {
	b.err.File = file
	b.err.Line = line
	return b
}

// WithStack replaces the captured stack
func (b *Builder) WithStack(stack []StackFrame) *Builder {
	b.err.Stack = stack
	return b
}

// WithPrevious links the error this one is raised from
func (b *Builder) WithPrevious(prev error) *Builder {
	b.err.previous = prev
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *HandlerError {
	return b.err
}

// New creates a HandlerError with a severity and message
func New(sev Severity, message string) *HandlerError {
	return newBuilder(sev, 1).WithMessage(message).Build()
}

// Newf creates a HandlerError with a formatted message
func Newf(sev Severity, format string, args ...any) *HandlerError {
	return newBuilder(sev, 1).WithMessagef(format, args...).Build()
}

// Wrap raises a HandlerError from prev, reusing its message
func Wrap(sev Severity, prev error) *HandlerError {
	b := newBuilder(sev, 1).WithPrevious(prev)
	if prev != nil {
		b.WithMessage(prev.Error())
	}
	return b.Build()
}

// FromPanic converts a recovered panic value into a HandlerError. It must be
// called from the deferred function that recovered v so the location points
// at the panicking code.
func FromPanic(v any) *HandlerError {
	if he, ok := v.(*HandlerError); ok {
		return he
	}

	b := &Builder{err: &HandlerError{Severity: 0}}
	stack := panicStack(1)
	b.WithStack(stack)
	if len(stack) > 0 {
		b.WithLocation(stack[0].File, stack[0].Line)
	}

	switch t := v.(type) {
	case error:
		// The error is the failure itself; only its causes join the chain.
		b.WithMessage(t.Error()).WithPrevious(stderrors.Unwrap(t))
		if _, ok := t.(runtime.Error); ok {
			// Runtime panics (nil dereference, out of range) stop the unit.
			b.err.Severity = EError
			b.err.Code = int(EError)
		}
	case string:
		b.WithMessage(t)
	default:
		b.WithMessagef("%v", t)
	}

	return b.Build()
}
