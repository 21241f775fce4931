package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffon/errguard/pkg/config"
	"github.com/buffon/errguard/pkg/fatallog"
	"github.com/buffon/errguard/pkg/handler"
	"github.com/buffon/errguard/pkg/logger"
)

// setup points the CLI at a fresh config and log root
func setup(t *testing.T) (configPath, logRoot string) {
	t.Helper()

	dir := t.TempDir()
	chdir(t, dir)
	logRoot = filepath.Join(dir, "logs")
	t.Setenv("ERRGUARD_LOG_ROOT", logRoot)
	t.Setenv("ERRGUARD_LOG_LEVEL", "error")

	configPath = filepath.Join(dir, "config.toml")
	var stdout, stderr bytes.Buffer
	code := run([]string{"errguard", "-config-output", configPath, "init"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	return configPath, logRoot
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-v", "-config", "/etc/x.toml", "trigger", "fatal"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "trigger", cfg.command)
	assert.Equal(t, []string{"fatal"}, cfg.args)
	assert.Equal(t, "/etc/x.toml", cfg.configPath)
	assert.Equal(t, "debug", cfg.logLevel)

	_, err = parseFlags([]string{"-nope"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestVersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"errguard", "version"}, &out, &out))
	assert.Contains(t, out.String(), "errguard v"+version)

	out.Reset()
	assert.Equal(t, exitOK, run([]string{"errguard", "-help"}, &out, &out))
	assert.Contains(t, out.String(), "COMMANDS:")
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run([]string{"errguard", "explode"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: explode")
}

func TestCodes(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"errguard", "codes"}, &out, &out))

	for _, want := range []string{"FTL-001", "ERR-001", "WRN-005", "EXC-001", "E_USER_ERROR", "Uncaught Exception"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	configPath, _ := setup(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"errguard", "-config-output", configPath, "init"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "already exists")
}

func TestValidate(t *testing.T) {
	configPath, logRoot := setup(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"errguard", "-config", configPath, "validate"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), logRoot)

	// ERRGUARD_LOG_LEVEL is set by setup, so break a field no env var overrides
	require.NoError(t, os.WriteFile(configPath, []byte("[server]\nshutdown_timeout = \"soon\"\n"), 0600))
	stdout.Reset()
	stderr.Reset()
	assert.Equal(t, exitError, run([]string{"errguard", "-config", configPath, "validate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Configuration invalid")
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		kind      string
		wantCode  int
		wantTitle string
	}{
		{kind: "ok", wantCode: exitOK},
		{kind: "notice", wantCode: exitOK},
		{kind: "exception", wantCode: handler.ExitFailure, wantTitle: "Uncaught Exception"},
		{kind: "error", wantCode: handler.ExitFailure, wantTitle: "User Error"},
		{kind: "fatal", wantCode: handler.ExitFailure, wantTitle: "Fatal Error"},
		{kind: "stringify", wantCode: handler.ExitFailure, wantTitle: "Recoverable Error"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			configPath, logRoot := setup(t)

			var stdout, stderr bytes.Buffer
			code := run([]string{"errguard", "-config", configPath, "trigger", tt.kind}, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, stderr.String())

			data, err := os.ReadFile(filepath.Join(logRoot, fatallog.FileName))
			if tt.wantTitle == "" {
				assert.True(t, os.IsNotExist(err))
				assert.Equal(t, tt.kind+": completed\n", stdout.String())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, string(handler.ResponseJSON), stdout.String())
			assert.Equal(t, 1, strings.Count(string(data), "date: "))
			assert.Contains(t, string(data), `"title": "`+tt.wantTitle+`"`)
			assert.Contains(t, string(data), `"url": "-config `+configPath+` trigger `+tt.kind+`"`)
		})
	}
}

func TestTriggerUsage(t *testing.T) {
	tests := [][]string{
		{"errguard", "trigger"},
		{"errguard", "trigger", "meltdown"},
		{"errguard", "trigger", "ok", "extra"},
	}

	for _, argv := range tests {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, exitUsage, run(argv, &stdout, &stderr), strings.Join(argv, " "))
	}
}

func TestVerboseReachesConfigLoading(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("ERRGUARD_LOG_ROOT", filepath.Join(dir, "logs"))

	tests := []struct {
		name string
		argv []string
		want bool
	}{
		{name: "verbose", argv: []string{"errguard", "-v", "validate"}, want: true},
		{name: "default level", argv: []string{"errguard", "validate"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.Equal(t, exitOK, run(tt.argv, &stdout, &stderr), stderr.String())
			assert.Equal(t, tt.want, strings.Contains(stderr.String(), "no configuration file found"))
		})
	}
}

func TestSetupLoggingInstallsGlobal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "warn"

	var stderr bytes.Buffer
	log, err := setupLogging(cfg, "serve", &stderr)
	require.NoError(t, err)
	assert.Same(t, log, logger.Global())

	logger.Info("hidden")
	logger.Global().Warn("listener closed")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "component=serve")
	assert.Contains(t, stderr.String(), "listener closed")
}

// chdir switches the working directory for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
