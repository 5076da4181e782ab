// Package walker produces the lazy sequence of candidate files for a search.
//
// The walk is depth-first in listing order and never follows symbolic
// links. Only the root listing can fail; subdirectories that vanish or
// cannot be read are skipped and the walk continues.
package walker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/filter"
	"github.com/dshills/scour/internal/project/vfs"
)

// ErrRootUnreadable indicates the workspace root could not be listed.
var ErrRootUnreadable = errors.New("root directory unreadable")

// Stats counts what a walk visited.
type Stats struct {
	// Dirs is the number of directories listed, including the root.
	Dirs int
	// Files is the number of files yielded.
	Files int
	// PrunedDirs is the number of directories the filter rejected.
	PrunedDirs int
	// SkippedFiles is the number of files the filter rejected.
	SkippedFiles int
	// UnreadableDirs is the number of directories that failed to list.
	UnreadableDirs int
}

// Walker walks one workspace root for one search.
// A Walker is single-use: its sequence can be ranged over once.
type Walker struct {
	fs             vfs.VFS
	filter         *filter.Filter
	includeModules bool
	logger         *logging.Logger

	used  atomic.Bool
	stats Stats
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger used for skipped directories.
func WithLogger(l *logging.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a walker over the filter's root.
func New(fsys vfs.VFS, f *filter.Filter, includeModules bool, opts ...Option) *Walker {
	w := &Walker{
		fs:             fsys,
		filter:         f,
		includeModules: includeModules,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk lists the root and returns the lazy sequence of readable files under
// it. The root listing happens before Walk returns; a failure there is
// reported as ErrRootUnreadable and no sequence is returned.
//
// The sequence checks ctx before every directory listing and every yield,
// and stops as soon as the consumer breaks out of its range loop.
func (w *Walker) Walk(ctx context.Context) (iter.Seq[vfs.FileInfo], error) {
	root := w.filter.Root()
	entries, err := w.fs.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnreadable, err)
	}

	return func(yield func(vfs.FileInfo) bool) {
		if !w.used.CompareAndSwap(false, true) {
			return
		}
		w.stats.Dirs++
		w.walkEntries(ctx, entries, yield)
	}, nil
}

// Stats returns the counters of the walk. It is only meaningful once the
// sequence has been consumed.
func (w *Walker) Stats() Stats {
	return w.stats
}

// walkEntries visits entries depth-first. It returns false when the walk
// must stop (cancellation or consumer break).
func (w *Walker) walkEntries(ctx context.Context, entries []vfs.FileInfo, yield func(vfs.FileInfo) bool) bool {
	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}

		if entry.IsDir() {
			if !w.filter.ShouldDescend(entry, w.includeModules) {
				w.stats.PrunedDirs++
				continue
			}
			children, err := w.fs.ReadDir(entry.Path())
			if err != nil {
				w.stats.UnreadableDirs++
				w.logger.Debug("skipping unreadable directory %s: %v", entry.Path(), err)
				continue
			}
			w.stats.Dirs++
			if !w.walkEntries(ctx, children, yield) {
				return false
			}
			continue
		}

		if !w.filter.ShouldRead(entry) {
			w.stats.SkippedFiles++
			continue
		}
		w.stats.Files++
		if !yield(entry) {
			return false
		}
	}
	return true
}
