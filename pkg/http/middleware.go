package http

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/handler"
	"github.com/buffon/errguard/pkg/host"
	"github.com/buffon/errguard/pkg/logger"
)

// RequestIDHeader carries the per-request id on responses
const RequestIDHeader = "X-Request-ID"

// MiddlewareConfig configures the per-request interceptor
type MiddlewareConfig struct {
	Handler        handler.Config
	ErrorReporting errors.Severity
}

// Deps holds optional collaborators shared by all requests
type Deps struct {
	Logger  *logger.Logger
	Metrics handler.Metrics
}

// Middleware runs every request as its own execution unit with a freshly
// registered handler. The runtime is reachable from the request context
// through host.FromContext.
func Middleware(cfg MiddlewareConfig, deps Deps) func(http.Handler) http.Handler {
	base := deps.Logger
	if base == nil {
		base = logger.Global()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			log := base.WithRequestID(requestID)
			w.Header().Set(RequestIDHeader, requestID)

			rt := host.New(host.Options{
				Output:         w,
				Request:        RequestFromHTTP(r),
				ErrorReporting: cfg.ErrorReporting,
			})

			opts := []handler.Option{handler.WithLogger(log)}
			if deps.Metrics != nil {
				opts = append(opts, handler.WithMetrics(deps.Metrics))
			}
			h := handler.New(rt, cfg.Handler, opts...)

			code := rt.Run(r.Context(), func(ctx context.Context) {
				h.Register()
				next.ServeHTTP(w, r.WithContext(ctx))
			})

			log.Debug("request finished",
				"method", r.Method,
				"uri", r.RequestURI,
				"exit_code", code,
			)
		})
	}
}

// RequestFromHTTP derives the server variables of r
func RequestFromHTTP(r *http.Request) host.Request {
	server := map[string]string{
		host.VarRequestMethod: r.Method,
		host.VarRequestURI:    r.RequestURI,
	}
	if server[host.VarRequestURI] == "" {
		server[host.VarRequestURI] = r.URL.RequestURI()
	}

	server[host.VarRemoteAddr] = hostOnly(r.RemoteAddr)

	name, port := splitHostPort(r.Host)
	if port == "" {
		port = "80"
		if r.TLS != nil {
			port = "443"
		}
	}
	server[host.VarServerName] = name
	server[host.VarServerPort] = port

	if r.TLS != nil {
		server[host.VarHTTPS] = "on"
	}

	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok && addr != nil {
		server[host.VarServerAddr] = hostOnly(addr.String())
	}

	return host.Request{Server: server}
}

func hostOnly(addr string) string {
	h, _ := splitHostPort(addr)
	return h
}

func splitHostPort(addr string) (string, string) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, ""
	}
	return h, p
}
