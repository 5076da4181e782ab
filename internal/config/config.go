package config

import (
	"errors"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/filter"
	"github.com/dshills/scour/internal/project/search"
)

// Config holds all scour settings.
type Config struct {
	Search  SearchConfig  `toml:"search" yaml:"search"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// Mode is the match mode: exact, ignore-case or fuzzy.
	Mode string `toml:"mode" yaml:"mode"`

	// MaxFileSize is the largest file, in bytes, that is read (0 = no limit).
	MaxFileSize int64 `toml:"max_file_size" yaml:"max_file_size"`

	// Workers bounds concurrent file reads (0 = number of CPUs).
	Workers int `toml:"workers" yaml:"workers"`

	// MaxResults caps the records of one search (0 = unlimited).
	MaxResults int `toml:"max_results" yaml:"max_results"`

	// ModuleDirs are directory names skipped unless modules are included.
	ModuleDirs []string `toml:"module_dirs" yaml:"module_dirs"`

	// Exclude and Include are doublestar globs relative to the root.
	Exclude []string `toml:"exclude" yaml:"exclude"`
	Include []string `toml:"include" yaml:"include"`

	// IncludeHidden visits dot-files and dot-directories.
	IncludeHidden bool `toml:"include_hidden" yaml:"include_hidden"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`

	// File receives log output; empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// Default returns the built-in settings.
func Default() *Config {
	fo := filter.DefaultOptions()
	so := search.DefaultOptions()
	return &Config{
		Search: SearchConfig{
			Mode:        search.ModeExact.String(),
			MaxFileSize: fo.MaxFileSize,
			Workers:     so.Workers,
			ModuleDirs:  append([]string(nil), fo.ModuleDirs...),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if _, err := search.ParseMode(c.Search.Mode); err != nil {
		invalid("search.mode", "must be exact, ignore-case or fuzzy", c.Search.Mode)
	}
	if c.Search.MaxFileSize < 0 {
		invalid("search.max_file_size", "must not be negative", c.Search.MaxFileSize)
	}
	if c.Search.Workers < 0 {
		invalid("search.workers", "must not be negative", c.Search.Workers)
	}
	if c.Search.MaxResults < 0 {
		invalid("search.max_results", "must not be negative", c.Search.MaxResults)
	}
	for _, p := range c.Search.Exclude {
		if !doublestar.ValidatePattern(p) {
			invalid("search.exclude", "malformed glob", p)
		}
	}
	for _, p := range c.Search.Include {
		if !doublestar.ValidatePattern(p) {
			invalid("search.include", "malformed glob", p)
		}
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		invalid("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	return errors.Join(errs...)
}

// Mode returns the configured match mode, falling back to exact.
func (c *Config) Mode() search.Mode {
	m, err := search.ParseMode(c.Search.Mode)
	if err != nil {
		return search.ModeExact
	}
	return m
}

// SearchOptions converts the settings into engine options.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		Filter: filter.Options{
			ModuleDirs:    append([]string(nil), c.Search.ModuleDirs...),
			Exclude:       append([]string(nil), c.Search.Exclude...),
			Include:       append([]string(nil), c.Search.Include...),
			MaxFileSize:   c.Search.MaxFileSize,
			IncludeHidden: c.Search.IncludeHidden,
		},
		Workers:    c.Search.Workers,
		MaxResults: c.Search.MaxResults,
	}
}

// LoggerConfig converts the settings into a logger configuration. The
// returned closer releases the log file, if one was opened.
func (c *Config) LoggerConfig() (logging.Config, func() error, error) {
	lc := logging.DefaultConfig()
	if level, ok := logging.ParseLevel(c.Logging.Level); ok {
		lc.Level = level
	}
	if c.Logging.File == "" {
		return lc, func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return lc, nil, err
	}
	lc.Output = f
	return lc, f.Close, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Search.ModuleDirs = append([]string(nil), c.Search.ModuleDirs...)
	out.Search.Exclude = append([]string(nil), c.Search.Exclude...)
	out.Search.Include = append([]string(nil), c.Search.Include...)
	return &out
}
