package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/Noahnut/wsengine"
	"github.com/Noahnut/wsengine/config"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// output receives usage, version and dry-run text.
var output io.Writer = os.Stderr //nolint:gochecknoglobals

// Execute parses args and runs the dispatcher until ctx is done.
func Execute(ctx context.Context, args []string) error {
	// .env first so real environment variables still win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("wsengine", flag.ContinueOnError)
	fs.SetOutput(output)

	// ── listener ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.Host, "host", "H", cfg.Host, "Listen address (empty for all interfaces)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Listen port")
	fs.BoolVar(&cfg.ReusePort, "reuse-port", cfg.ReusePort, "Set SO_REUSEPORT on the listener")

	// ── pool ─────────────────────────────────────────────────────
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of session slots")
	fs.IntVar(&cfg.MaxWebSockets, "max-websockets", cfg.MaxWebSockets, "Concurrent websocket sessions")
	fs.BoolVar(&cfg.SilentUpgradeReject, "silent-reject", cfg.SilentUpgradeReject, "Skip upgrades over the limit without a 503")

	// ── timeouts ─────────────────────────────────────────────────
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP request read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Socket write attempt timeout")
	fs.IntVar(&cfg.SendRetries, "send-retries", cfg.SendRetries, "Retries after a write timeout")
	fs.DurationVar(&cfg.WSTimerCycle, "ws-timer", cfg.WSTimerCycle, "Websocket timer cycle")
	fs.DurationVar(&cfg.WSIdleTimeout, "ws-idle-timeout", cfg.WSIdleTimeout, "Close websockets idle this long")

	// ── buffers ──────────────────────────────────────────────────
	fs.IntVar(&cfg.ReceiveBufferSize, "receive-buffer", cfg.ReceiveBufferSize, "Per-session receive buffer in bytes")
	fs.IntVar(&cfg.MaxRequestBodySize, "max-body", cfg.MaxRequestBodySize, "Largest accepted request body in bytes")

	// ── content ──────────────────────────────────────────────────
	var staticDir string
	fs.StringVarP(&staticDir, "static", "s", "", "Serve files from this directory under /static/")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

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
		fmt.Fprintf(output, "wsengine %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return errors.Errorf("unexpected argument %q", fs.Arg(0))
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if staticDir != "" {
		if st, err := os.Stat(staticDir); err != nil || !st.IsDir() {
			return errors.Errorf("static: %s is not a directory", staticDir)
		}
	}
	if dryRun {
		printConfig(cfg, staticDir)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := newLogger(cfg)
	d, err := wsengine.NewDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	registerHandlers(d, staticDir)

	return d.ListenAndServe(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := cfg.Level(); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func printConfig(cfg *config.Config, staticDir string) {
	lvl, _ := cfg.Level()
	fmt.Fprintf(output, "listen          %s (reuse-port %v)\n", cfg.Addr(), cfg.ReusePort)
	fmt.Fprintf(output, "workers         %d\n", cfg.Workers)
	fmt.Fprintf(output, "websockets      %d (silent reject %v)\n", cfg.MaxWebSockets, cfg.SilentUpgradeReject)
	fmt.Fprintf(output, "read timeout    %s\n", cfg.ReadTimeout)
	fmt.Fprintf(output, "write timeout   %s, %d retries\n", cfg.WriteTimeout, cfg.SendRetries)
	fmt.Fprintf(output, "ws timer        %s, idle timeout %s\n", cfg.WSTimerCycle, cfg.WSIdleTimeout)
	fmt.Fprintf(output, "buffers         receive %d, body %d\n", cfg.ReceiveBufferSize, cfg.MaxRequestBodySize)
	if staticDir != "" {
		fmt.Fprintf(output, "static          %s\n", staticDir)
	}
	fmt.Fprintf(output, "log level       %s\n", lvl)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(output, `wsengine v%s

HTTP and WebSocket server with a fixed session pool.

Usage:
  wsengine [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(output, `
Environment:
  WSENGINE_PORT, WSENGINE_WORKERS, WSENGINE_MAX_WEBSOCKETS, ...   override defaults
  .env in the working directory is loaded first

Examples:
  wsengine -p 8080                            Serve on 8080
  wsengine -w 16 --max-websockets 8           Larger pool
  wsengine -s ./public -vv                    Static files, trace logging
`)
}
