package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dshills/scour/internal/project/search"
	"github.com/dshills/scour/internal/project/vfs"
)

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: scour search [options] QUERY", 2)
	}

	s, err := newSession(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer s.Close()

	engine := search.NewEngine(vfs.NewOSFS(), s.cfg.SearchOptions(), search.WithLogger(s.logger.WithComponent("engine")))
	out, err := engine.Run(c.Context, search.Query{
		Text:           c.Args().First(),
		Root:           s.root,
		IncludeModules: c.Bool("modules"),
		Mode:           s.mode,
	})
	switch {
	case errors.Is(err, search.ErrCanceled):
		return cli.Exit("", 130)
	case err != nil:
		return cli.Exit(err.Error(), 1)
	}

	w := bufio.NewWriter(c.App.Writer)
	for _, m := range out.Matches {
		fmt.Fprintln(w, m.String())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s.logger.Debug("%d matches, %d files visited, %d skipped in %s",
		len(out.Matches), out.Stats.FilesVisited, out.Stats.FilesSkipped, out.Stats.Elapsed)
	if out.Truncated {
		s.logger.Warn("results truncated at %d", s.cfg.Search.MaxResults)
	}
	return nil
}
