package host

import "context"

type runtimeKey struct{}

type stringifyingKey struct{}

// NewContext returns a context carrying rt
func NewContext(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// FromContext returns the runtime stored by NewContext
func FromContext(ctx context.Context) (*Runtime, bool) {
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	return rt, ok && rt != nil
}

// WithStringifying marks ctx as being inside a string conversion. Raising a
// failure from within a conversion is not allowed; the error hook checks this
// mark and routes straight to the uncaught path instead.
func WithStringifying(ctx context.Context) context.Context {
	return context.WithValue(ctx, stringifyingKey{}, true)
}

// IsStringifying reports whether ctx was marked by WithStringifying
func IsStringifying(ctx context.Context) bool {
	on, _ := ctx.Value(stringifyingKey{}).(bool)
	return on
}

// ContextStringer is implemented by types whose string conversion may report
// runtime conditions
type ContextStringer interface {
	StringContext(ctx context.Context) string
}

// Stringify converts v with ctx marked as stringifying
func Stringify(ctx context.Context, v ContextStringer) string {
	return v.StringContext(WithStringifying(ctx))
}
