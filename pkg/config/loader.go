package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	guarderrors "github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/logger"
)

// Load loads configuration from a file path. An empty path searches
// ConfigPaths; when nothing is found the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		logger.Debug("no configuration file found, using defaults",
			"checked", ConfigPaths(),
		)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) error {
	// Handler overrides
	if v := os.Getenv("ERRGUARD_MEMORY_RESERVE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ERRGUARD_MEMORY_RESERVE: %w", err)
		}
		cfg.Handler.MemoryReserveSize = n
	}
	if v := os.Getenv("ERRGUARD_LOG_ROOT"); v != "" {
		cfg.Handler.LogRoot = v
	}
	if v := os.Getenv("ERRGUARD_ERROR_REPORTING"); v != "" {
		mask, err := guarderrors.ParseMask(v)
		if err != nil {
			return fmt.Errorf("ERRGUARD_ERROR_REPORTING: %w", err)
		}
		cfg.Handler.ErrorReporting = int(mask)
	}

	// Server overrides
	if v := os.Getenv("ERRGUARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ERRGUARD_SHUTDOWN_TIMEOUT"); v != "" {
		cfg.Server.ShutdownTimeout = v
	}

	// Metrics overrides
	if v := os.Getenv("ERRGUARD_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ERRGUARD_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Logging overrides
	if v := os.Getenv("ERRGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ERRGUARD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ERRGUARD_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("ERRGUARD_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	return nil
}

// Save saves the configuration to a file
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Normalize paths for TOML compatibility (forward slashes, no backslashes)
	cfgCopy := *cfg
	cfgCopy.Handler.LogRoot = filepath.ToSlash(cfg.Handler.LogRoot)
	if cfgCopy.Logging.File != "" {
		cfgCopy.Logging.File = filepath.ToSlash(cfgCopy.Logging.File)
	}

	data, err := toml.Marshal(&cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateExampleConfig generates an example configuration file
func GenerateExampleConfig(path string) error {
	cfg := DefaultConfig()

	cfg.Handler.ErrorReporting = int(guarderrors.EAll &^ guarderrors.EStrict)
	cfg.Logging.Format = logger.FormatAuto

	return Save(cfg, path)
}
