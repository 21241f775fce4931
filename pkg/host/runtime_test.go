package host

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffon/errguard/pkg/errors"
)

func newTestRuntime() (*Runtime, *bytes.Buffer) {
	var out bytes.Buffer
	return New(Options{Output: &out, Request: CLIRequest([]string{"prog"})}), &out
}

func TestNewDefaults(t *testing.T) {
	rt := New(Options{})
	assert.Equal(t, errors.EAll, rt.ErrorReporting())
	assert.True(t, rt.DisplayErrors())
	assert.Nil(t, rt.LastError())
	assert.NotNil(t, rt.Output())

	hidden := New(Options{HideErrors: true, ErrorReporting: errors.EError})
	assert.False(t, hidden.DisplayErrors())
	assert.Equal(t, errors.EError, hidden.ErrorReporting())
}

func TestHookStacks(t *testing.T) {
	rt, _ := newTestRuntime()

	assert.False(t, rt.RestoreExceptionHandler())
	assert.False(t, rt.RestoreErrorHandler())

	var calls []string
	rt.SetErrorHandler(func(context.Context, errors.Severity, string, string, int) bool {
		calls = append(calls, "first")
		return true
	})
	rt.SetErrorHandler(func(context.Context, errors.Severity, string, string, int) bool {
		calls = append(calls, "second")
		return true
	})

	rt.TriggerError(context.Background(), errors.EUserWarning, "w", "f.go", 1)
	require.True(t, rt.RestoreErrorHandler())
	rt.TriggerError(context.Background(), errors.EUserWarning, "w", "f.go", 1)

	assert.Equal(t, []string{"second", "first"}, calls)
	assert.Nil(t, rt.LastError(), "handled conditions are not recorded")
}

func TestSetters(t *testing.T) {
	rt, _ := newTestRuntime()

	old := rt.SetErrorReporting(errors.EError | errors.EUserError)
	assert.Equal(t, errors.EAll, old)
	assert.Equal(t, errors.EError|errors.EUserError, rt.ErrorReporting())

	assert.True(t, rt.SetDisplayErrors(false))
	assert.False(t, rt.DisplayErrors())
}

func TestTriggerErrorDefaultHandling(t *testing.T) {
	tests := []struct {
		name        string
		sev         errors.Severity
		reporting   errors.Severity
		wantExit    bool
		wantDisplay bool
	}{
		{name: "warning displayed and resumed", sev: errors.EWarning, reporting: errors.EAll, wantDisplay: true},
		{name: "notice masked", sev: errors.ENotice, reporting: errors.EAll &^ errors.ENotice},
		{name: "user error terminates", sev: errors.EUserError, reporting: errors.EAll, wantExit: true, wantDisplay: true},
		{name: "recoverable error terminates", sev: errors.ERecoverableError, reporting: errors.EAll, wantExit: true, wantDisplay: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, out := newTestRuntime()
			rt.SetErrorReporting(tt.reporting)

			resumed := false
			code := rt.Run(context.Background(), func(ctx context.Context) {
				rt.TriggerError(ctx, tt.sev, "boom", "app.go", 12)
				resumed = true
			})

			if tt.wantExit {
				assert.Equal(t, ExitFatal, code)
				assert.False(t, resumed)
			} else {
				assert.Equal(t, 0, code)
				assert.True(t, resumed)
			}

			le := rt.LastError()
			require.NotNil(t, le)
			assert.Equal(t, tt.sev, le.Type)
			assert.Equal(t, "boom", le.Message)
			assert.Equal(t, "app.go", le.File)
			assert.Equal(t, 12, le.Line)

			if tt.wantDisplay {
				assert.Contains(t, out.String(), "boom in app.go on line 12")
			} else {
				assert.Empty(t, out.String())
			}
		})
	}
}

func TestTriggerErrorUnhandleableSkipsHook(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.SetDisplayErrors(false)

	hookCalled := false
	rt.SetErrorHandler(func(context.Context, errors.Severity, string, string, int) bool {
		hookCalled = true
		return true
	})

	code := rt.Run(context.Background(), func(ctx context.Context) {
		rt.TriggerError(ctx, errors.ECoreError, "core", "core.go", 3)
	})

	assert.Equal(t, ExitFatal, code)
	assert.False(t, hookCalled)
	require.NotNil(t, rt.LastError())
	assert.Equal(t, errors.ECoreError, rt.LastError().Type)
}

func TestTriggerRecordsCaller(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.SetDisplayErrors(false)

	rt.Trigger(context.Background(), errors.ENotice, "here")

	le := rt.LastError()
	require.NotNil(t, le)
	assert.Contains(t, le.File, "runtime_test.go")
	assert.Positive(t, le.Line)
}

func TestRunExit(t *testing.T) {
	rt, _ := newTestRuntime()

	var order []string
	rt.RegisterShutdownFunction(func() { order = append(order, "a") })
	rt.RegisterShutdownFunction(func() { order = append(order, "b") })

	code := rt.Run(context.Background(), func(ctx context.Context) {
		rt.Exit(3)
		order = append(order, "unreachable")
	})

	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRunProvidesRuntimeInContext(t *testing.T) {
	rt, _ := newTestRuntime()

	var got *Runtime
	rt.Run(context.Background(), func(ctx context.Context) {
		got, _ = FromContext(ctx)
	})
	assert.Same(t, rt, got)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestRunTwicePanics(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.Run(context.Background(), func(context.Context) {})
	assert.Panics(t, func() { rt.Run(context.Background(), func(context.Context) {}) })
}

func TestUncaughtDefaultHandling(t *testing.T) {
	rt, out := newTestRuntime()

	code := rt.Run(context.Background(), func(context.Context) {
		panic(stderrors.New("kaput"))
	})

	assert.Equal(t, ExitFatal, code)
	le := rt.LastError()
	require.NotNil(t, le)
	assert.Equal(t, errors.EError, le.Type)
	assert.Contains(t, le.Message, "Uncaught")
	assert.Contains(t, le.Message, "kaput")
	assert.Contains(t, out.String(), "Fatal Error: Uncaught")
}

func TestUncaughtGoesToHook(t *testing.T) {
	tests := []struct {
		name     string
		hook     ExceptionHandler
		wantCode int
		wantLast bool
	}{
		{
			name:     "hook exits",
			hook:     func(error) { panic(exitSignal{code: 1}) },
			wantCode: 1,
		},
		{
			name:     "hook returns",
			hook:     func(error) {},
			wantCode: ExitFatal,
		},
		{
			name:     "hook panics",
			hook:     func(error) { panic("again") },
			wantCode: ExitFatal,
			wantLast: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _ := newTestRuntime()
			rt.SetDisplayErrors(false)

			var seen error
			rt.SetExceptionHandler(func(err error) {
				seen = err
				tt.hook(err)
			})

			code := rt.Run(context.Background(), func(context.Context) {
				panic(errors.New(errors.EUserError, "escaped"))
			})

			assert.Equal(t, tt.wantCode, code)
			var he *errors.HandlerError
			require.True(t, stderrors.As(seen, &he))
			assert.Equal(t, "escaped", he.Message)
			assert.Equal(t, tt.wantLast, rt.LastError() != nil)
		})
	}
}

func TestRestoredHookFallsBackToDefault(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.SetDisplayErrors(false)

	called := false
	rt.SetExceptionHandler(func(error) { called = true })
	require.True(t, rt.RestoreExceptionHandler())

	code := rt.Run(context.Background(), func(context.Context) { panic("late") })

	assert.Equal(t, ExitFatal, code)
	assert.False(t, called)
	require.NotNil(t, rt.LastError())
	assert.Contains(t, rt.LastError().Message, "late")
}

func TestShutdownExitStopsRemaining(t *testing.T) {
	rt, _ := newTestRuntime()

	var order []string
	rt.RegisterShutdownFunction(func() {
		order = append(order, "first")
		rt.Exit(7)
	})
	rt.RegisterShutdownFunction(func() { order = append(order, "second") })

	code := rt.Run(context.Background(), func(context.Context) {})

	assert.Equal(t, 7, code)
	assert.Equal(t, []string{"first"}, order)
}

func TestShutdownRegisteredDuringShutdownRuns(t *testing.T) {
	rt, _ := newTestRuntime()

	var order []string
	rt.RegisterShutdownFunction(func() {
		order = append(order, "outer")
		rt.RegisterShutdownFunction(func() { order = append(order, "inner") })
	})

	rt.Run(context.Background(), func(context.Context) {})
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestShutdownSeesFatalLastError(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.SetDisplayErrors(false)

	var seen *LastError
	rt.RegisterShutdownFunction(func() { seen = rt.LastError() })

	code := rt.Run(context.Background(), func(ctx context.Context) {
		rt.Fatal(errors.EError, "Allowed memory size exhausted", "alloc.go", 9)
	})

	assert.Equal(t, ExitFatal, code)
	require.NotNil(t, seen)
	assert.Equal(t, errors.EError, seen.Type)
	assert.Equal(t, "Allowed memory size exhausted", seen.Message)

	rt.ClearLastError()
	assert.Nil(t, rt.LastError())
}
