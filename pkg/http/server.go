// Package http serves HTTP requests as interceptor-guarded execution units.
// Each request runs on its own host.Runtime with a registered handler, so an
// uncaught failure or fatal condition ends the request with the fixed JSON
// failure response and one block in the fatal log.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/handler"
	"github.com/buffon/errguard/pkg/logger"
	"github.com/buffon/errguard/pkg/metrics"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr           string
	MetricsEnabled bool
	MetricsPath    string
	Handler        handler.Config
	ErrorReporting errors.Severity
}

// Server is the guarded HTTP server
type Server struct {
	config     ServerConfig
	log        *logger.Logger
	recorder   *metrics.Recorder
	registry   *prometheus.Registry
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, log *logger.Logger) (*Server, error) {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if log == nil {
		log = logger.Global()
	}

	s := &Server{
		config:   config,
		log:      log.WithComponent("http"),
		recorder: metrics.NewRecorder(),
		mux:      http.NewServeMux(),
	}

	if config.MetricsEnabled {
		s.registry = prometheus.NewRegistry()
		if err := metrics.Register(s.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	guard := Middleware(MiddlewareConfig{
		Handler:        s.config.Handler,
		ErrorReporting: s.config.ErrorReporting,
	}, Deps{
		Logger:  s.log,
		Metrics: s.recorder,
	})

	s.mux.Handle("/health", guard(http.HandlerFunc(s.handleHealth)))
	s.mux.Handle("/demo/", guard(DemoHandler()))

	if s.registry != nil {
		s.mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Recorder returns the local metrics recorder
func (s *Server) Recorder() *metrics.Recorder {
	return s.recorder
}

// Addr returns the bound address once the server is listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("starting HTTP server", "addr", ln.Addr().String(), "metrics", s.registry != nil)

	err = srv.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		s.log.Info("stopping HTTP server")
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"version":   logger.Version,
		"timestamp": time.Now().Unix(),
		"counters":  s.recorder.GetSnapshot(),
	})
}
