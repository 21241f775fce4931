// Package config provides configuration management for errguard.
// Supports TOML configuration files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	guarderrors "github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/handler"
	"github.com/buffon/errguard/pkg/logger"
)

// Helper function to validate directory exists or can be created
func validateDirectoryWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("cannot write to directory: %w", err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all errguard configuration
type Config struct {
	// Handler configuration
	Handler HandlerConfig `toml:"handler"`

	// Server configuration
	Server ServerConfig `toml:"server"`

	// Metrics configuration
	Metrics MetricsConfig `toml:"metrics"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// HandlerConfig holds interceptor configuration
type HandlerConfig struct {
	// MemoryReserveSize is the reserve buffer size in bytes (0 = no reserve)
	MemoryReserveSize int `toml:"memory_reserve_size" env:"ERRGUARD_MEMORY_RESERVE"`

	// LogRoot is the directory holding fatal_log.txt
	LogRoot string `toml:"log_root" env:"ERRGUARD_LOG_ROOT"`

	// ErrorReporting is the reporting mask; the env override also accepts
	// expressions like "E_ALL & ~E_NOTICE"
	ErrorReporting int `toml:"error_reporting" env:"ERRGUARD_ERROR_REPORTING"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" env:"ERRGUARD_ADDR"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout string `toml:"shutdown_timeout" env:"ERRGUARD_SHUTDOWN_TIMEOUT"`
}

// MetricsConfig holds Prometheus endpoint configuration
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint
	Enabled bool `toml:"enabled" env:"ERRGUARD_METRICS_ENABLED"`

	// Path is the metrics endpoint path
	Path string `toml:"path" env:"ERRGUARD_METRICS_PATH"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `toml:"level" env:"ERRGUARD_LOG_LEVEL"`

	// Format is the log format (json, text, auto)
	Format string `toml:"format" env:"ERRGUARD_LOG_FORMAT"`

	// Output is the log output (stdout, stderr, file)
	Output string `toml:"output" env:"ERRGUARD_LOG_OUTPUT"`

	// File is the log file path when output is "file"
	File string `toml:"file" env:"ERRGUARD_LOG_FILE"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Handler: HandlerConfig{
			MemoryReserveSize: handler.DefaultMemoryReserveSize,
			LogRoot:           ".",
			ErrorReporting:    int(guarderrors.EAll),
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			// stdout carries failure responses in command-line mode
			Output: "stderr",
			File:   "",
		},
	}
}

// ConfigPaths returns the list of default configuration file paths to check
func ConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		filepath.Join(homeDir, ".errguard", "config.toml"),
		filepath.Join("/etc", "errguard", "config.toml"),
		"./config.toml",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate handler configuration
	if c.Handler.MemoryReserveSize < 0 {
		return fmt.Errorf("%w: handler.memory_reserve_size cannot be negative", ErrInvalidConfig)
	}

	if c.Handler.LogRoot == "" {
		return fmt.Errorf("%w: handler.log_root is required", ErrInvalidConfig)
	}

	if err := validateDirectoryWritable(c.Handler.LogRoot); err != nil {
		return fmt.Errorf("%w: log root %s: %w", ErrInvalidConfig, c.Handler.LogRoot, err)
	}

	if c.Handler.ErrorReporting < 1 || c.Handler.ErrorReporting > int(guarderrors.EAll) {
		return fmt.Errorf("%w: handler.error_reporting must be between 1 and %d", ErrInvalidConfig, int(guarderrors.EAll))
	}

	// Validate server configuration
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}

	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("%w: server.shutdown_timeout: %w", ErrInvalidConfig, err)
	}

	// Validate metrics configuration if enabled
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path must start with /", ErrInvalidConfig)
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}

	validFormats := map[string]bool{
		logger.FormatJSON: true,
		logger.FormatText: true,
		logger.FormatAuto: true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text, auto", ErrInvalidConfig)
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("%w: logging.output must be one of: stdout, stderr, file", ErrInvalidConfig)
	}

	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("%w: logging.file is required when logging.output is 'file'", ErrInvalidConfig)
	}

	return nil
}

// ToHandlerConfig converts the Config to handler.Config
func (c *Config) ToHandlerConfig() handler.Config {
	return handler.Config{
		MemoryReserveSize: c.Handler.MemoryReserveSize,
		LogRoot:           c.Handler.LogRoot,
	}
}

// ErrorReportingMask returns the configured reporting mask
func (c *Config) ErrorReportingMask() guarderrors.Severity {
	return guarderrors.Severity(c.Handler.ErrorReporting)
}

// LogOutput returns the logger output target
func (c *Config) LogOutput() string {
	if c.Logging.Output == "file" {
		return c.Logging.File
	}
	return c.Logging.Output
}

// ToLoggerConfig converts the Config to logger.Config
func (c *Config) ToLoggerConfig(component string) logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Output:    c.LogOutput(),
		Component: component,
	}
}

// GetShutdownTimeout returns the graceful shutdown timeout as a Duration
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
