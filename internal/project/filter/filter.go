// Package filter decides which workspace entries the search engine visits.
//
// A Filter is a pure function of entry metadata: it never touches the file
// system. Directories are pruned when they are hidden, when they are
// well-known dependency or build directories (unless modules are included),
// or when they match a user exclude glob. Files are skipped when they are
// hidden, not regular, too large, or filtered out by globs.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/scour/internal/project/vfs"
)

// DefaultMaxFileSize is the size ceiling above which files are not read.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024 // 10 MB

// DefaultModuleDirs are dependency, cache, build and version-control
// directories skipped unless modules are explicitly included.
var DefaultModuleDirs = []string{
	// Version control
	".git",
	".svn",
	".hg",

	// Dependencies
	"node_modules",
	"bower_components",
	"vendor",
	".venv",
	"venv",
	"env",
	"site-packages",
	"__pycache__",

	// Tool caches
	".tox",
	".mypy_cache",
	".pytest_cache",
	".gradle",

	// Build outputs
	"dist",
	"build",
	"target",

	// IDE/Editor
	".idea",
	".vscode",
}

// Options configures a Filter.
type Options struct {
	// ModuleDirs are directory names treated as dependency directories.
	ModuleDirs []string

	// Exclude holds doublestar globs matched against root-relative,
	// slash-separated paths. Matching entries are always skipped.
	Exclude []string

	// Include holds doublestar globs; when non-empty only matching files
	// are read.
	Include []string

	// MaxFileSize is the largest file read, in bytes (0 = unlimited).
	MaxFileSize int64

	// IncludeHidden disables the hidden-entry rule.
	IncludeHidden bool
}

// DefaultOptions returns the default filter options.
func DefaultOptions() Options {
	dirs := make([]string, len(DefaultModuleDirs))
	copy(dirs, DefaultModuleDirs)
	return Options{
		ModuleDirs:  dirs,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Filter decides, per entry, whether to descend or read.
type Filter struct {
	root       string
	opts       Options
	moduleDirs map[string]bool
}

// New creates a Filter for the workspace rooted at root.
// It returns an error if any glob pattern is malformed.
func New(root string, opts Options) (*Filter, error) {
	for _, pattern := range append(append([]string{}, opts.Exclude...), opts.Include...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}

	moduleDirs := make(map[string]bool, len(opts.ModuleDirs))
	for _, name := range opts.ModuleDirs {
		moduleDirs[name] = true
	}

	return &Filter{
		root:       filepath.Clean(root),
		opts:       opts,
		moduleDirs: moduleDirs,
	}, nil
}

// Root returns the workspace root the filter was created for.
func (f *Filter) Root() string { return f.root }

// MaxFileSize returns the configured size ceiling (0 = unlimited).
func (f *Filter) MaxFileSize() int64 { return f.opts.MaxFileSize }

// ShouldDescend reports whether the walker should list the directory.
// The root itself is always descended.
func (f *Filter) ShouldDescend(entry vfs.FileInfo, includeModules bool) bool {
	if f.isRoot(entry.Path()) {
		return true
	}
	if !entry.IsDir() || entry.IsSymlink() {
		return false
	}
	if !f.opts.IncludeHidden && IsHidden(entry.Name()) {
		return false
	}
	if !includeModules && f.IsModuleDir(entry.Name()) {
		return false
	}
	return !f.excluded(entry.Path())
}

// ShouldRead reports whether the scanner should read the file.
func (f *Filter) ShouldRead(entry vfs.FileInfo) bool {
	if entry.IsSymlink() || !entry.IsRegular() {
		return false
	}
	if !f.opts.IncludeHidden && IsHidden(entry.Name()) {
		return false
	}
	if f.opts.MaxFileSize > 0 && entry.Size() > f.opts.MaxFileSize {
		return false
	}
	if f.excluded(entry.Path()) {
		return false
	}
	return f.included(entry.Path())
}

// IsBinary reports whether the leading bytes of a file mark it as binary.
func (f *Filter) IsBinary(head []byte) bool {
	return vfs.IsBinary(head)
}

// IsModuleDir reports whether name is a configured dependency directory.
func (f *Filter) IsModuleDir(name string) bool {
	return f.moduleDirs[name]
}

// IsHidden reports whether name follows the dot-file convention.
func IsHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}

func (f *Filter) isRoot(path string) bool {
	return filepath.Clean(path) == f.root
}

// excluded checks the exclude globs against the root-relative path.
func (f *Filter) excluded(path string) bool {
	rel := f.rel(path)
	for _, pattern := range f.opts.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// included checks the include globs; no globs means everything is included.
func (f *Filter) included(path string) bool {
	if len(f.opts.Include) == 0 {
		return true
	}
	rel := f.rel(path)
	base := filepath.Base(path)
	for _, pattern := range f.opts.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		// Patterns without a separator also apply to the base name.
		if !strings.Contains(pattern, "/") {
			if matched, _ := doublestar.Match(pattern, base); matched {
				return true
			}
		}
	}
	return false
}

// rel returns path relative to the root, slash-separated.
func (f *Filter) rel(path string) string {
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
