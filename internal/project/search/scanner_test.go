package search

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scour/internal/project/filter"
	"github.com/dshills/scour/internal/project/vfs"
)

func newScanner(t *testing.T, fsys vfs.VFS, opts filter.Options, mode Mode) *Scanner {
	t.Helper()
	f, err := filter.New("/ws", opts)
	require.NoError(t, err)
	return NewScanner(fsys, f, MatcherFor(mode))
}

func TestScanner_LinesAndTerminators(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/notes.txt", "alpha\nsearch one\r\nbeta\nlast search")

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/notes.txt", "search")
	require.NoError(t, err)

	assert.Equal(t, []MatchRecord{
		{Path: "/ws/notes.txt", Line: 2, Start: 0, End: 6, Text: "search one"},
		{Path: "/ws/notes.txt", Line: 4, Start: 5, End: 11, Text: "last search"},
	}, records)
}

func TestScanner_OneRecordPerLine(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/a.txt", "search search search\n")

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/a.txt", "search")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Start)
}

func TestScanner_BinaryFile(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddBytes("/ws/blob.bin", []byte("search\x00\x01\x02search\n"))

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/blob.bin", "search")
	assert.ErrorIs(t, err, ErrBinaryFile)
	assert.Empty(t, records)
}

func TestScanner_TooLarge(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/big.txt", strings.Repeat("search\n", 10))

	opts := filter.DefaultOptions()
	opts.MaxFileSize = 16
	_, err := newScanner(t, fsys, opts, ModeExact).
		Scan(context.Background(), "/ws/big.txt", "search")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestScanner_Unreadable(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/locked.txt", "search\n")
	fsys.SetUnreadable("/ws/locked.txt", true)

	_, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/locked.txt", "search")
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestScanner_InvalidUTF8Replaced(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddBytes("/ws/latin1.txt", []byte("caf\xe9 search\n"))

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/latin1.txt", "search")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "caf� search", records[0].Text)
	assert.Equal(t, 5, records[0].Start)
	assert.Equal(t, 11, records[0].End)
}

func TestScanner_EmptyQuery(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/a.txt", "search\n")

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).
		Scan(context.Background(), "/ws/a.txt", "")
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestScanner_Canceled(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/a.txt", "search\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t, fsys, filter.DefaultOptions(), ModeExact).Scan(ctx, "/ws/a.txt", "search")
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestScanner_IgnoreCase(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/ws/a.go", "func Search() {}\nfunc other() {}\n")

	records, err := newScanner(t, fsys, filter.DefaultOptions(), ModeIgnoreCase).
		Scan(context.Background(), "/ws/a.go", "search")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Line)
	assert.Equal(t, 5, records[0].Start)
}
