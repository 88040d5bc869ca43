// Package main is the entry point for vtmux, a multi-session virtual
// terminal running inside the host terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/dshills/vtmux/internal/config"
	"github.com/dshills/vtmux/internal/console"
	"github.com/dshills/vtmux/internal/display"
	"github.com/dshills/vtmux/internal/logging"
	"github.com/dshills/vtmux/internal/vterm"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// flushInterval is how often a dangling hotkey prefix is checked.
const flushInterval = 10 * time.Millisecond

type options struct {
	configPath string
	logLevel   string
	logFile    string
	watch      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if cfg.Log.File == "" {
		// The screen owns stderr while running.
		cfg.Log.File = filepath.Join(os.TempDir(), "vtmux.log")
	}

	logger, closer, err := logging.New(cfg.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: vtmux must run in an interactive terminal")
		return 1
	}

	if err := serve(opts, cfg, logger); err != nil {
		logger.WithError(err).Error("vtmux stopped")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func serve(opts options, cfg *config.Config, logger *logrus.Logger) error {
	vc, err := cfg.VTerm()
	if err != nil {
		return err
	}
	mgr, err := vterm.New(vc, vterm.WithLogger(logging.Component(logger, "vterm")))
	if err != nil {
		return fmt.Errorf("initialize sessions: %w", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initialize screen: %w", err)
	}
	var finiOnce sync.Once
	fini := func() { finiOnce.Do(screen.Fini) }
	defer fini()

	renderer := display.NewRenderer(screen, mgr,
		display.WithMaxFPS(cfg.Display.MaxFPS),
		display.WithStatusLine(cfg.Display.StatusLine),
		display.WithLogger(logging.Component(logger, "display")),
	)
	mgr.AddSwitchObserver(renderer)
	mgr.AddRenderObserver(renderer)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return renderer.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return display.Pump(ctx, screen, mgr, renderer)
	})
	g.Go(func() error {
		<-ctx.Done()
		fini()
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				mgr.FlushStaleInput()
			}
		}
	})

	conLog := logging.Component(logger, "console")
	for id := 0; id < mgr.Count(); id++ {
		con := console.New(mgr, id, console.WithQuit(cancel), console.WithLogger(conLog))
		g.Go(func() error {
			return con.Run(ctx)
		})
	}

	if opts.watch && opts.configPath != "" {
		g.Go(func() error {
			err := config.Watch(ctx, opts.configPath, func(nc *config.Config, err error) {
				if err != nil {
					return
				}
				apply(nc, mgr, renderer, logger)
			}, config.WithWatchLogger(logging.Component(logger, "config")))
			if err != nil {
				logger.WithError(err).Warn("config watching disabled")
			}
			return nil
		})
	}

	logger.WithFields(logrus.Fields{
		"version":  version,
		"sessions": mgr.Count(),
		"rows":     vc.Rows,
		"cols":     vc.Cols,
	}).Info("vtmux started")
	renderer.Invalidate()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("vtmux stopped")
	return nil
}

// apply pushes the settings that can change without restarting.
func apply(cfg *config.Config, mgr *vterm.Manager, r *display.Renderer, logger *logrus.Logger) {
	if colors, err := cfg.PaletteColors(); err == nil {
		mgr.SetPalette(colors)
	}
	r.SetMaxFPS(cfg.Display.MaxFPS)
	r.SetStatusLine(cfg.Display.StatusLine)
	logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	r.Invalidate()
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml or .yaml)")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.logFile, "log-file", "", "Log file (default: vtmux.log in the temp directory)")
	flag.BoolVar(&opts.watch, "watch", true, "Reload the configuration file when it changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vtmux - multi-session virtual terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vtmux [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  F1-F4, Ctrl+F1-F4     Switch to session 0-3\n")
		fmt.Fprintf(os.Stderr, "  quit                  Exit (typed in any session)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("vtmux %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.logLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
		os.Exit(1)
	}

	return opts
}
