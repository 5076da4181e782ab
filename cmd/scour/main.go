// Package main is the entry point for the scour workspace search tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dshills/scour/internal/config"
	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/search"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := newApp().RunContext(ctx, args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := exitErr.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "scour %s\nCommit: %s\nBuilt: %s\n", version, commit, date)
	}

	return &cli.App{
		Name:                   "scour",
		Usage:                  "Search a workspace for text as you type",
		Version:                version,
		UseShortOptionHandling: true,
		// Exit codes are handled by run.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.toml, .yaml or .yml)",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides the config file",
				EnvVars: []string{config.EnvPrefix + "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search the workspace once and print matches",
				ArgsUsage: "QUERY",
				Flags:     append(searchFlags(), &cli.IntFlag{Name: "max-results", Aliases: []string{"n"}, Usage: "Stop after N matches (0 = unlimited)"}),
				Action:    searchCommand,
			},
			{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Open the search-as-you-type screen",
				Flags:   searchFlags(),
				Action:  interactiveCommand,
			},
		},
	}
}

// searchFlags are shared by both commands.
func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Workspace root directory",
			Value:   ".",
		},
		&cli.BoolFlag{
			Name:    "modules",
			Aliases: []string{"m"},
			Usage:   "Include dependency and build directories (node_modules, vendor, ...)",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Match mode: exact, ignore-case or fuzzy (default from config)",
		},
	}
}

// session is what both commands need: resolved settings and a logger.
type session struct {
	cfg       *config.Config
	cfgPath   string
	overrides overrides
	root      string
	mode      search.Mode
	logger    *logging.Logger
	closeLogs func() error
}

// overrides are the settings given as flags. They sit above the config
// file and the environment, including on every reload of the file.
type overrides []func(*config.Config)

func flagOverrides(c *cli.Context) overrides {
	var o overrides
	if c.IsSet("log-level") {
		level := c.String("log-level")
		o = append(o, func(cfg *config.Config) { cfg.Logging.Level = level })
	}
	if c.IsSet("mode") {
		mode := c.String("mode")
		o = append(o, func(cfg *config.Config) { cfg.Search.Mode = mode })
	}
	if c.IsSet("max-results") {
		n := c.Int("max-results")
		o = append(o, func(cfg *config.Config) { cfg.Search.MaxResults = n })
	}
	return o
}

func (o overrides) apply(cfg *config.Config) {
	for _, set := range o {
		set(cfg)
	}
}

// load reads path with the environment applied, then the flags.
func (o overrides) load(path string) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSession(c *cli.Context) (*session, error) {
	cfgPath := c.String("config")
	flags := flagOverrides(c)
	cfg, err := flags.load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", c.String("root"), err)
	}

	lc, closeLogs, err := cfg.LoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return &session{
		cfg:       cfg,
		cfgPath:   cfgPath,
		overrides: flags,
		root:      root,
		mode:      cfg.Mode(),
		logger:    logging.New(lc),
		closeLogs: closeLogs,
	}, nil
}

func (s *session) Close() {
	_ = s.closeLogs()
}
