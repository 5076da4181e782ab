// Package search provides workspace content search: the line matcher, the
// per-file scanner and the engine that composes them with the walker into
// one background scan.
package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/scour/internal/project/walker"
)

// Common errors.
var (
	ErrInvalidQuery   = errors.New("invalid search query")
	ErrCanceled       = errors.New("search canceled")
	ErrRootUnreadable = walker.ErrRootUnreadable
	ErrFileTooLarge   = errors.New("file exceeds maximum size limit")
	ErrBinaryFile     = errors.New("binary file")
)

// Mode selects how a query is matched against a line.
type Mode int

const (
	// ModeExact is case-sensitive substring search (first occurrence).
	ModeExact Mode = iota

	// ModeIgnoreCase is substring search under Unicode simple case folding.
	ModeIgnoreCase

	// ModeFuzzy matches the query characters in order, not necessarily
	// consecutively.
	ModeFuzzy
)

// String returns the string representation of the match mode.
func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeIgnoreCase:
		return "ignore-case"
	case ModeFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ModeExact, nil
	case "ignore-case", "ignorecase", "icase":
		return ModeIgnoreCase, nil
	case "fuzzy":
		return ModeFuzzy, nil
	default:
		return ModeExact, fmt.Errorf("%w: unknown match mode %q", ErrInvalidQuery, s)
	}
}

// Query is one search request. It is immutable once submitted.
type Query struct {
	// Text is the string searched for. An empty Text matches nothing.
	Text string

	// Root is the absolute workspace directory.
	Root string

	// IncludeModules descends into dependency and build directories.
	IncludeModules bool

	// Mode selects the matching rule.
	Mode Mode

	// Generation is assigned by the scheduler at submission time.
	Generation uint64
}

// MatchRecord is one located occurrence of a query.
type MatchRecord struct {
	// Path is the absolute path to the file
	Path string

	// Line is the 1-based line number
	Line int

	// Start and End are code point offsets within Text; End is exclusive.
	Start int
	End   int

	// Text is the matching line, without its line terminator
	Text string
}

// Column returns the 1-based column of the match start.
func (m MatchRecord) Column() int {
	return m.Start + 1
}

// String formats the record as path:line:column: text.
func (m MatchRecord) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", m.Path, m.Line, m.Column(), m.Text)
}
