package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/filter"
	"github.com/dshills/scour/internal/project/vfs"
	"github.com/dshills/scour/internal/project/walker"
)

// Options configures the engine.
type Options struct {
	// Filter configures which entries are visited.
	Filter filter.Options

	// Workers bounds how many files are read concurrently (0 = NumCPU).
	Workers int

	// MaxResults caps the records of one search (0 = unlimited).
	MaxResults int
}

// DefaultOptions returns sensible defaults for content search.
func DefaultOptions() Options {
	return Options{
		Filter:  filter.DefaultOptions(),
		Workers: runtime.NumCPU(),
	}
}

// Stats summarises one search.
type Stats struct {
	Dirs           int
	UnreadableDirs int
	FilesVisited   int
	FilesMatched   int
	FilesSkipped   int
	Elapsed        time.Duration
}

// Outcome is the result of a search that ran to completion.
type Outcome struct {
	// Matches are ordered by walk order, then by line.
	Matches []MatchRecord

	// Truncated reports that MaxResults cut the search short.
	Truncated bool

	Stats Stats
}

// Engine runs complete searches: walk, scan and match.
// It holds no per-search state, so one Engine serves every generation.
type Engine struct {
	fs     vfs.VFS
	opts   atomic.Pointer[Options]
	logger *logging.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine reading through fsys.
func NewEngine(fsys vfs.VFS, opts Options, engineOpts ...EngineOption) *Engine {
	e := &Engine{fs: fsys, logger: logging.Nop()}
	for _, opt := range engineOpts {
		opt(e)
	}
	e.SetOptions(opts)
	return e
}

// SetOptions replaces the options used by searches started afterwards.
func (e *Engine) SetOptions(opts Options) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	e.opts.Store(&opts)
}

// Options returns the current options.
func (e *Engine) Options() Options {
	return *e.opts.Load()
}

// fileSlot receives one file's records; slots keep walk order while files
// are scanned concurrently.
type fileSlot struct {
	records []MatchRecord
	err     error
}

// Run performs one search.
//
// It returns ErrRootUnreadable if the root cannot be listed, ErrInvalidQuery
// for malformed filter globs, and ErrCanceled if ctx is cancelled before
// the walk is exhausted; partial results are discarded. Failures on
// individual files or subdirectories never surface: they count as skipped.
func (e *Engine) Run(ctx context.Context, q Query) (Outcome, error) {
	started := time.Now()
	opts := e.Options()

	root, err := e.fs.Abs(q.Root)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrRootUnreadable, err)
	}
	f, err := filter.New(root, opts.Filter)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	w := walker.New(e.fs, f, q.IncludeModules, walker.WithLogger(e.logger))
	files, err := w.Walk(ctx)
	if err != nil {
		return Outcome{}, err
	}

	var slots []*fileSlot
	truncated := false
	if q.Text != "" {
		slots, truncated = e.scanAll(ctx, files, f, q, opts)
	}
	if ctx.Err() != nil {
		return Outcome{}, ErrCanceled
	}

	out := Outcome{Truncated: truncated}
	for _, slot := range slots {
		switch {
		case slot.err != nil:
			out.Stats.FilesSkipped++
			e.logger.Debug("skipping file: %v", slot.err)
		case len(slot.records) > 0:
			out.Stats.FilesMatched++
			out.Matches = append(out.Matches, slot.records...)
		}
	}
	if opts.MaxResults > 0 && len(out.Matches) > opts.MaxResults {
		out.Matches = out.Matches[:opts.MaxResults]
		out.Truncated = true
	}

	ws := w.Stats()
	out.Stats.Dirs = ws.Dirs
	out.Stats.UnreadableDirs = ws.UnreadableDirs
	out.Stats.FilesVisited = len(slots)
	out.Stats.Elapsed = time.Since(started)
	return out, nil
}

// scanAll scans every yielded file on a bounded worker group. It stops
// pulling files once more than MaxResults records have been found.
func (e *Engine) scanAll(ctx context.Context, files iter.Seq[vfs.FileInfo], f *filter.Filter, q Query, opts Options) ([]*fileSlot, bool) {
	scanner := NewScanner(e.fs, f, MatcherFor(q.Mode))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	var found atomic.Int64
	var slots []*fileSlot
	capped := false
	for entry := range files {
		if opts.MaxResults > 0 && found.Load() > int64(opts.MaxResults) {
			capped = true
			break
		}
		slot := &fileSlot{}
		slots = append(slots, slot)
		path := entry.Path()
		g.Go(func() error {
			records, err := scanner.Scan(gctx, path, q.Text)
			if errors.Is(err, ErrCanceled) {
				return nil
			}
			slot.records, slot.err = records, err
			found.Add(int64(len(records)))
			return nil
		})
	}
	_ = g.Wait()
	return slots, capped
}
