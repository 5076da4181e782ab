package main

import (
	"fmt"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli/v2"

	"github.com/dshills/scour/internal/config"
	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project"
	"github.com/dshills/scour/internal/project/scheduler"
	"github.com/dshills/scour/internal/tui"
)

func interactiveCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer s.Close()

	// Log lines would corrupt the screen unless they go to a file.
	if s.cfg.Logging.File == "" {
		s.logger = logging.Nop()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer screen.Fini()

	// The app needs the project and the project's callbacks need the app.
	var appRef atomic.Pointer[tui.App]
	opts := []project.Option{
		project.WithLogger(s.logger),
		project.WithModules(c.Bool("modules")),
	}
	if s.cfgPath != "" {
		opts = append(opts,
			project.WithConfigFile(s.cfgPath, func(*config.Config) {
				if app := appRef.Load(); app != nil {
					app.Notify("config reloaded")
				}
			}),
			project.WithConfigLoader(s.overrides.load))
	}

	p, err := project.Open(s.root, s.cfg, func(r scheduler.Result) {
		if app := appRef.Load(); app != nil {
			app.Deliver(r)
		}
	}, opts...)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer p.Close()

	app := tui.New(screen, p, p.Root(), tui.WithLogger(s.logger), tui.WithModules(p.IncludeModules()))
	appRef.Store(app)
	return app.Run(c.Context)
}
