// Package cmd wires up the CLI flags and dispatches to the bridge.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"vsmsock/config"
	"vsmsock/internal/core"
	"vsmsock/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X vsmsock/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the bridge until ctx is done.
func Execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("vsmsock", flag.ContinueOnError)

	// ── transport ────────────────────────────────────────────────
	portSpec := fs.StringP("port", "p", "", fmt.Sprintf("Listening port (default %d)", config.DefaultPort))
	bufferSize := fs.Int("buffer-size", config.DefaultBufferSize, "Scratch buffer size in bytes")

	// ── console ──────────────────────────────────────────────────
	input := fs.String("input", "", `File to read outgoing signals from ("-" for stdin)`)

	// ── accept loop ──────────────────────────────────────────────
	retries := fs.Int("accept-retries", config.DefaultAcceptRetries, "Accept attempts before giving up (0 = forever)")
	backoffMs := fs.Int("accept-backoff", int(config.DefaultAcceptBackoff/time.Millisecond), "Initial delay between failed accepts in ms")

	// ── run control ──────────────────────────────────────────────
	configFile := fs.String("config", "", "YAML configuration file")
	dryRun := fs.Bool("dry-run", false, "Validate configuration and exit")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	quiet := fs.BoolP("quiet", "q", false, "Only print received signals and errors")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("vsmsock %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── layer configuration: defaults < file < env < flags ───────
	cfg := config.New()
	if *configFile != "" {
		if err := config.LoadFile(cfg, *configFile); err != nil {
			return err
		}
		cfg.ConfigFile = *configFile
	}
	config.LoadFromEnv(cfg)

	if fs.Changed("port") {
		port, err := config.ParsePort(*portSpec)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	}
	if fs.Changed("buffer-size") {
		cfg.BufferSize = *bufferSize
	}
	if fs.Changed("input") {
		cfg.Input = *input
	}
	if fs.Changed("accept-retries") {
		cfg.AcceptRetries = *retries
	}
	if fs.Changed("accept-backoff") {
		cfg.AcceptBackoff = time.Duration(*backoffMs) * time.Millisecond
	}
	if fs.Changed("verbose") {
		cfg.Verbose = config.DefaultVerbose + verbose
	}
	if *quiet {
		cfg.Verbose = 0
	}
	if *dryRun {
		cfg.DryRun = true
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printDryRun(cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.Debug("configuration: %+v", *cfg)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func printDryRun(cfg *config.Config) {
	input := cfg.Input
	if cfg.UsesStdin() {
		input = "stdin"
	}
	fmt.Fprintf(os.Stderr, "configuration OK\n")
	fmt.Fprintf(os.Stderr, "  listen:         %s\n", util.ListenAddr(cfg.Port))
	fmt.Fprintf(os.Stderr, "  buffer size:    %d\n", cfg.BufferSize)
	fmt.Fprintf(os.Stderr, "  input:          %s\n", input)
	fmt.Fprintf(os.Stderr, "  accept retries: %d (backoff %s)\n", cfg.AcceptRetries, cfg.AcceptBackoff)
	fmt.Fprintf(os.Stderr, "  verbosity:      %d\n", cfg.Verbose)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `vsmsock – Very Simple Messages over TCP v%s

Listens for one client at a time and exchanges name=value signals
with it: received signals are printed as "> name=value", lines read
from the console are sent to the client.

Usage:
  vsmsock [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  VSM_PORT, VSM_BUFFER_SIZE, VSM_INPUT, VSM_VERBOSE,
  VSM_ACCEPT_RETRIES, VSM_ACCEPT_BACKOFF_MS, VSM_DRY_RUN

Examples:
  vsmsock                                 Listen on port %d
  vsmsock -p 0x1f90 -v                    Listen on 8080, verbose
  vsmsock --input signals.txt             Send signals from a file
  vsmsock --config vsmsock.yaml --dry-run Check a configuration file
`, config.DefaultPort)
}
