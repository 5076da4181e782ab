package project

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/scour/internal/config"
	"github.com/dshills/scour/internal/project/scheduler"
	"github.com/dshills/scour/internal/project/search"
	"github.com/dshills/scour/internal/project/vfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type inbox struct {
	mu      sync.Mutex
	results []scheduler.Result
	ch      chan scheduler.Result
}

func newInbox() *inbox {
	return &inbox{ch: make(chan scheduler.Result, 16)}
}

func (b *inbox) deliver(r scheduler.Result) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
	b.ch <- r
}

func (b *inbox) next(t *testing.T) scheduler.Result {
	t.Helper()
	select {
	case r := <-b.ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
		return scheduler.Result{}
	}
}

func memWorkspace() *vfs.MemFS {
	m := vfs.NewMemFS()
	m.AddFile("/ws/a.py", "import os\n\ndef search_items():\n")
	m.AddFile("/ws/node_modules/lib/index.js", "module.exports = search\n")
	m.AddFile("/ws/README.md", "Search the workspace\n")
	return m
}

func paths(r scheduler.Result) []string {
	var out []string
	for _, m := range r.Matches {
		out = append(out, m.Path)
	}
	return out
}

func TestProject_Search(t *testing.T) {
	in := newInbox()
	p, err := Open("/ws", config.Default(), in.deliver, WithVFS(memWorkspace()))
	require.NoError(t, err)
	defer p.Close()

	gen := p.Search("search")
	r := in.next(t)

	assert.Equal(t, gen, r.Generation)
	require.NoError(t, r.Err)
	assert.Equal(t, []search.MatchRecord{
		{Path: "/ws/a.py", Line: 3, Start: 4, End: 10, Text: "def search_items():"},
	}, r.Matches)
	assert.False(t, p.Superseded(gen))
}

func TestProject_IncludeModulesToggle(t *testing.T) {
	in := newInbox()
	p, err := Open("/ws", config.Default(), in.deliver, WithVFS(memWorkspace()), WithModules(true))
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IncludeModules())
	p.Search("search")
	assert.Equal(t, []string{"/ws/a.py", "/ws/node_modules/lib/index.js"}, paths(in.next(t)))

	p.SetIncludeModules(false)
	p.Search("search")
	assert.Equal(t, []string{"/ws/a.py"}, paths(in.next(t)))
}

func TestProject_SubmitRecordsToggle(t *testing.T) {
	in := newInbox()
	p, err := Open("/ws", config.Default(), in.deliver, WithVFS(memWorkspace()))
	require.NoError(t, err)
	defer p.Close()

	p.Submit("search", p.Root(), true)
	in.next(t)
	assert.True(t, p.IncludeModules())
}

func TestProject_Reload(t *testing.T) {
	in := newInbox()
	p, err := Open("/ws", config.Default(), in.deliver, WithVFS(memWorkspace()))
	require.NoError(t, err)
	defer p.Close()

	cfg := config.Default()
	cfg.Search.Mode = "ignore-case"
	require.NoError(t, p.Reload(cfg))
	assert.Equal(t, "ignore-case", p.Settings().Search.Mode)

	p.Search("search")
	assert.Equal(t, []string{"/ws/README.md", "/ws/a.py"}, paths(in.next(t)))

	bad := config.Default()
	bad.Search.Workers = -3
	assert.ErrorIs(t, p.Reload(bad), config.ErrValidationFailed)
}

func TestProject_MissingRootDeliversFailure(t *testing.T) {
	in := newInbox()
	p, err := Open("/absent", config.Default(), in.deliver, WithVFS(memWorkspace()))
	require.NoError(t, err)
	defer p.Close()

	p.Search("search")
	r := in.next(t)
	assert.True(t, r.Failed())
	assert.ErrorIs(t, r.Err, search.ErrRootUnreadable)
}

func TestProject_FileRootRejected(t *testing.T) {
	_, err := Open("/ws/a.py", config.Default(), nil, WithVFS(memWorkspace()))
	require.Error(t, err)

	var we *WorkspaceError
	require.True(t, errors.As(err, &we))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestProject_SymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(real, "a.py"), []byte("import os\n\ndef search_items():\n"), 0o644))
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	in := newInbox()
	p, err := Open(link, config.Default(), in.deliver)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, link, p.Root())
	p.Search("search")
	r := in.next(t)
	require.NoError(t, r.Err)
	assert.Equal(t, []string{filepath.Join(link, "a.py")}, paths(r))
}

func TestProject_SymlinkedRootInMemory(t *testing.T) {
	fsys := memWorkspace()
	fsys.AddSymlink("/alias", "/ws")
	fsys.AddSymlink("/file-alias", "/ws/a.py")

	in := newInbox()
	p, err := Open("/alias", config.Default(), in.deliver, WithVFS(fsys))
	require.NoError(t, err)
	defer p.Close()

	p.Search("search")
	assert.Equal(t, []string{"/alias/a.py"}, paths(in.next(t)))

	_, err = Open("/file-alias", config.Default(), nil, WithVFS(fsys))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestProject_Close(t *testing.T) {
	p, err := Open("/ws", config.Default(), nil, WithVFS(memWorkspace()))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, IsNotOpen(p.Close()))
	assert.Zero(t, p.Search("search"))
	assert.ErrorIs(t, p.Reload(config.Default()), ErrNotOpen)
}

func TestProject_ConfigFileReload(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scour.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[search]\nmode = \"exact\"\n"), 0o644))

	reloaded := make(chan *config.Config, 4)
	in := newInbox()
	p, err := Open("/ws", config.Default(), in.deliver,
		WithVFS(memWorkspace()),
		WithConfigFile(cfgPath, func(cfg *config.Config) { reloaded <- cfg }))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, os.WriteFile(cfgPath, []byte("[search]\nmode = \"ignore-case\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "ignore-case", cfg.Search.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not applied")
	}
	assert.Equal(t, search.ModeIgnoreCase, p.Settings().Mode())
}

func TestProject_ConfigLoaderKeepsOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scour.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[search]\nmode = \"exact\"\n"), 0o644))

	load := func(path string) (*config.Config, error) {
		cfg, err := config.LoadWithEnv(path)
		if err != nil {
			return nil, err
		}
		cfg.Search.Mode = "fuzzy"
		return cfg, nil
	}

	reloaded := make(chan *config.Config, 4)
	p, err := Open("/ws", config.Default(), nil,
		WithVFS(memWorkspace()),
		WithConfigFile(cfgPath, func(cfg *config.Config) { reloaded <- cfg }),
		WithConfigLoader(load))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, os.WriteFile(cfgPath, []byte("[search]\nmode = \"ignore-case\"\nmax_results = 7\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "fuzzy", cfg.Search.Mode)
		assert.Equal(t, 7, cfg.Search.MaxResults)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not applied")
	}
	assert.Equal(t, search.ModeFuzzy, p.Settings().Mode())
}
