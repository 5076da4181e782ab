package search

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/scour/internal/project/filter"
	"github.com/dshills/scour/internal/project/vfs"
)

// cancelCheckLines is how many lines are matched between cancellation checks.
const cancelCheckLines = 1024

// Scanner reads single files and reports their matching lines.
type Scanner struct {
	fs      vfs.VFS
	filter  *filter.Filter
	matcher Matcher
}

// NewScanner creates a scanner reading through fsys, sniffing and size-
// limiting with f, and matching with m.
func NewScanner(fsys vfs.VFS, f *filter.Filter, m Matcher) *Scanner {
	return &Scanner{fs: fsys, filter: f, matcher: m}
}

// Scan returns one record per matching line of the file at path, in line
// order. Binary content, oversized content and read or decode failures are
// reported as errors; callers searching a workspace treat every error as
// "no matches". A cancelled ctx yields ErrCanceled.
func (s *Scanner) Scan(ctx context.Context, path, query string) ([]MatchRecord, error) {
	if ctx.Err() != nil {
		return nil, ErrCanceled
	}
	if query == "" {
		return nil, nil
	}

	content, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if s.filter.IsBinary(content) {
		return nil, ErrBinaryFile
	}
	text, err := vfs.DecodeText(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var records []MatchRecord
	lineNum := 0
	for len(text) > 0 {
		var line string
		line, text, _ = strings.Cut(text, "\n")
		line = strings.TrimSuffix(line, "\r")
		lineNum++

		if lineNum%cancelCheckLines == 0 && ctx.Err() != nil {
			return nil, ErrCanceled
		}

		start, end, ok := s.matcher.Match(line, query)
		if !ok {
			continue
		}
		records = append(records, MatchRecord{
			Path:  path,
			Line:  lineNum,
			Start: start,
			End:   end,
			Text:  line,
		})
	}
	return records, nil
}

// read loads the file, refusing content beyond the size ceiling in case the
// file grew after it was listed.
func (s *Scanner) read(path string) ([]byte, error) {
	r, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	limit := s.filter.MaxFileSize()
	if limit <= 0 {
		return io.ReadAll(r)
	}
	content, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, ErrFileTooLarge
	}
	return content, nil
}
