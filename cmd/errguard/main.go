// errguard - Main entry point
//
// errguard intercepts uncaught failures, recoverable runtime errors and fatal
// conditions, appends one record per failure to fatal_log.txt and answers with
// a fixed JSON failure response.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/sync/errgroup"

	"github.com/buffon/errguard/pkg/config"
	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/handler"
	"github.com/buffon/errguard/pkg/host"
	guardhttp "github.com/buffon/errguard/pkg/http"
	"github.com/buffon/errguard/pkg/logger"
	"github.com/buffon/errguard/pkg/metrics"
)

var (
	version   = "0.3.0"
	buildTime = "unknown"
)

// Exit statuses of the CLI itself
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type cliConfig struct {
	command      string
	args         []string
	configPath   string
	configOutput string
	addr         string
	logLevel     string
	verbose      bool
	version      bool
	help         bool
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	cliCfg, err := parseFlags(argv[1:], stderr)
	if err != nil {
		return exitUsage
	}

	if cliCfg.version {
		printVersion(stdout)
		return exitOK
	}

	if cliCfg.help {
		printHelp(stdout)
		return exitOK
	}

	// Bootstrap logger so config loading honors -v; replaced once the
	// configuration is known
	if _, err := logger.Initialize(logger.Config{Level: cliCfg.logLevel, Writer: stderr}); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}

	switch cliCfg.command {
	case "init":
		return runInitCommand(cliCfg, stdout, stderr)
	case "validate":
		return runValidateCommand(cliCfg, stdout, stderr)
	case "codes":
		printCodes(stdout)
		return exitOK
	case "trigger":
		return runTriggerCommand(cliCfg, argv, stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help":
		printHelp(stdout)
		return exitOK
	case "serve", "":
		return runServeCommand(cliCfg, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cliCfg.command)
		printHelp(stderr)
		return exitUsage
	}
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	cfg := cliConfig{}

	fs := flag.NewFlagSet("errguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&cfg.configOutput, "config-output", "config.toml", "Output path for 'init' command")
	fs.StringVar(&cfg.addr, "addr", "", "Listen address for 'serve' (overrides config)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.verbose, "v", false, "Verbose logging (sets log level to debug)")
	fs.BoolVar(&cfg.version, "version", false, "Print version and exit")
	fs.BoolVar(&cfg.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	// Check for command-line commands (first argument after flags)
	rest := fs.Args()
	if len(rest) > 0 {
		cfg.command = rest[0]
		cfg.args = rest[1:]
	}

	// Set verbose flag if -v is used
	if cfg.verbose {
		cfg.logLevel = "debug"
	}

	return cfg, nil
}

func loadConfig(cliCfg cliConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.configPath)
	if err != nil {
		return nil, err
	}
	if cliCfg.logLevel != "" {
		cfg.Logging.Level = cliCfg.logLevel
	}
	if cliCfg.addr != "" {
		cfg.Server.Addr = cliCfg.addr
	}
	return cfg, nil
}

// setupLogging installs the configured logger as the global one
func setupLogging(cfg *config.Config, component string, stderr io.Writer) (*logger.Logger, error) {
	lc := cfg.ToLoggerConfig(component)
	if lc.Output == "stderr" {
		lc.Writer = stderr
	}
	return logger.Initialize(lc)
}

// runInitCommand generates an example configuration file
func runInitCommand(cliCfg cliConfig, stdout, stderr io.Writer) int {
	if _, err := os.Stat(cliCfg.configOutput); err == nil {
		fmt.Fprintf(stderr, "Configuration file already exists: %s\n", cliCfg.configOutput)
		return exitError
	}

	if err := config.GenerateExampleConfig(cliCfg.configOutput); err != nil {
		fmt.Fprintf(stderr, "Failed to generate configuration: %v\n", err)
		return exitError
	}

	fmt.Fprintf(stdout, "Configuration written to %s\n", cliCfg.configOutput)
	return exitOK
}

// runValidateCommand loads and validates the configuration
func runValidateCommand(cliCfg cliConfig, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration invalid: %v\n", err)
		return exitError
	}

	fmt.Fprintln(stdout, "Configuration valid")
	fmt.Fprintf(stdout, "  log root:        %s\n", cfg.Handler.LogRoot)
	fmt.Fprintf(stdout, "  memory reserve:  %d bytes\n", cfg.Handler.MemoryReserveSize)
	fmt.Fprintf(stdout, "  error reporting: %d\n", cfg.Handler.ErrorReporting)
	fmt.Fprintf(stdout, "  listen address:  %s\n", cfg.Server.Addr)
	return exitOK
}

// runTriggerCommand runs one guarded command-line execution unit that drives
// the named interceptor path. Its exit status is the unit's status.
func runTriggerCommand(cliCfg cliConfig, argv []string, stdout, stderr io.Writer) int {
	if len(cliCfg.args) != 1 {
		fmt.Fprintln(stderr, "Usage: errguard trigger <ok|exception|error|notice|fatal|stringify>")
		return exitUsage
	}
	kind := cliCfg.args[0]
	if !isDemo(kind) {
		fmt.Fprintf(stderr, "Unknown trigger: %s\n", kind)
		return exitUsage
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	log, err := setupLogging(cfg, "trigger", stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}

	rt := host.New(host.Options{
		Output:         stdout,
		Request:        host.CLIRequest(argv),
		ErrorReporting: cfg.ErrorReportingMask(),
	})
	h := handler.New(rt, cfg.ToHandlerConfig(),
		handler.WithLogger(log),
		handler.WithMetrics(metrics.NewRecorder()),
	)

	return rt.Run(context.Background(), func(ctx context.Context) {
		h.Register()
		guardhttp.RunDemo(ctx, rt, kind)
		fmt.Fprintf(stdout, "%s: completed\n", kind)
	})
}

func isDemo(kind string) bool {
	switch kind {
	case guardhttp.DemoOK, guardhttp.DemoException, guardhttp.DemoError,
		guardhttp.DemoNotice, guardhttp.DemoFatal, guardhttp.DemoStringify:
		return true
	}
	return false
}

// runServeCommand runs the HTTP server until SIGINT or SIGTERM
func runServeCommand(cliCfg cliConfig, stderr io.Writer) int {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	log, err := setupLogging(cfg, "serve", stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := guardhttp.NewServer(guardhttp.ServerConfig{
		Addr:           cfg.Server.Addr,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Handler:        cfg.ToHandlerConfig(),
		ErrorReporting: cfg.ErrorReportingMask(),
	}, log)
	if err != nil {
		log.ErrorEvent(ctx, "failed to create server", err)
		return exitError
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.ErrorEvent(ctx, "server stopped with error", err)
		return exitError
	}

	logger.Info("server stopped")
	return exitOK
}

// printCodes renders the code registry as a table
func printCodes(w io.Writer) {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("CODE", "SEVERITY", "VALUE", "NAME", "DESCRIPTION")

	for _, def := range errors.AllCodes() {
		sev := "-"
		if def.Severity != 0 {
			sev = def.Severity.String()
		}
		t.Row(def.Code, sev, strconv.Itoa(int(def.Severity)), def.Name, def.Help)
	}

	fmt.Fprintln(w, t.Render())
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "errguard v%s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
}

func printHelp(w io.Writer) {
	helpText := `USAGE:
    errguard [flags] [command]

COMMANDS:
    serve       Start the guarded HTTP server (default)
    trigger     Run one guarded unit: ok, exception, error, notice, fatal, stringify
    codes       List error codes
    init        Write an example configuration file
    validate    Validate configuration
    version     Show version information
    help        Show this help message

EXAMPLES:
    errguard init
    errguard -config ./config.toml serve
    errguard trigger exception
    ERRGUARD_ERROR_REPORTING="E_ALL & ~E_NOTICE" errguard trigger notice

FLAGS:
    -config string        Path to configuration file
    -config-output string Output path for 'init' (default: config.toml)
    -addr string          Listen address for 'serve'
    -log-level string     Log level: debug, info, warn, error
    -v                    Verbose (debug) logging
    -version              Show version information
    -help                 Show this help message

CONFIGURATION:
    Configuration is read from the -config path, or the first of
    ~/.errguard/config.toml, /etc/errguard/config.toml and ./config.toml.

ENVIRONMENT VARIABLES:
    ERRGUARD_LOG_ROOT         Directory holding fatal_log.txt
    ERRGUARD_MEMORY_RESERVE   Reserve buffer size in bytes
    ERRGUARD_ERROR_REPORTING  Reporting mask (number or expression)
    ERRGUARD_ADDR             Listen address
    ERRGUARD_LOG_LEVEL        Log level
`
	fmt.Fprint(w, helpText)
}
