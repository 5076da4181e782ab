package project

import (
	"sync"

	"github.com/dshills/scour/internal/config"
	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/scheduler"
	"github.com/dshills/scour/internal/project/search"
	"github.com/dshills/scour/internal/project/vfs"
)

// Project is one open workspace.
type Project struct {
	root     string
	fs       vfs.VFS
	logger   *logging.Logger
	cfgPath  string
	onReload func(*config.Config)
	loadCfg  func(path string) (*config.Config, error)

	engine  *search.Engine
	sched   *scheduler.Scheduler
	watcher *config.Watcher

	mu             sync.Mutex
	settings       *config.Config
	includeModules bool
	closed         bool
}

// Option configures a Project.
type Option func(*Project)

// WithVFS sets the file system. The default is the OS file system.
func WithVFS(v vfs.VFS) Option {
	return func(p *Project) {
		if v != nil {
			p.fs = v
		}
	}
}

// WithLogger sets the logger shared by the engine and scheduler.
func WithLogger(l *logging.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithConfigFile watches path and applies its settings on change.
// onReload, if non-nil, is called after each applied reload.
func WithConfigFile(path string, onReload func(*config.Config)) Option {
	return func(p *Project) {
		p.cfgPath = path
		p.onReload = onReload
	}
}

// WithConfigLoader sets how the watched config file is read on change.
// The default is config.LoadWithEnv.
func WithConfigLoader(load func(path string) (*config.Config, error)) Option {
	return func(p *Project) {
		p.loadCfg = load
	}
}

// WithModules sets the initial include-modules toggle.
func WithModules(include bool) Option {
	return func(p *Project) {
		p.includeModules = include
	}
}

// Open opens the workspace at root. A root that does not exist is accepted;
// every search then delivers a root failure. A root that is a file is
// rejected.
func Open(root string, settings *config.Config, deliver scheduler.DeliverFunc, opts ...Option) (*Project, error) {
	if settings == nil {
		settings = config.Default()
	}
	p := &Project{
		fs:       vfs.NewOSFS(),
		logger:   logging.Nop(),
		settings: settings.Clone(),
	}
	for _, opt := range opts {
		opt(p)
	}

	abs, err := p.fs.Abs(root)
	if err != nil {
		return nil, &WorkspaceError{Root: root, Err: err}
	}
	// Stat follows a symlinked root; only a root resolving to a file is refused.
	if info, err := p.fs.Stat(abs); err == nil && !info.IsDir() {
		return nil, &WorkspaceError{Root: abs, Err: ErrNotDirectory}
	}
	p.root = abs

	p.engine = search.NewEngine(p.fs, p.settings.SearchOptions(),
		search.WithLogger(p.logger.WithComponent("engine")))
	p.sched = scheduler.New(p.engine, deliver,
		scheduler.WithLogger(p.logger), scheduler.WithMode(p.settings.Mode()))

	if p.cfgPath != "" {
		w, err := config.NewWatcher(p.cfgPath, p.applyReload,
			config.WithWatcherLogger(p.logger), config.WithLoader(p.loadCfg))
		if err != nil {
			p.sched.Close()
			return nil, &WorkspaceError{Root: abs, Err: err}
		}
		p.watcher = w
	}

	p.logger.WithField("root", abs).Info("workspace opened")
	return p, nil
}

// Root returns the absolute workspace root.
func (p *Project) Root() string {
	return p.root
}

// Settings returns a copy of the settings in effect.
func (p *Project) Settings() *config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.Clone()
}

// Search starts a new generation for text and returns its number, or 0
// if the project is closed.
func (p *Project) Search(text string) uint64 {
	p.mu.Lock()
	q := search.Query{
		Text:           text,
		Root:           p.root,
		IncludeModules: p.includeModules,
		Mode:           p.settings.Mode(),
	}
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return 0
	}
	return p.sched.SubmitQuery(q)
}

// Submit starts a new generation under root, recording includeModules as
// the new toggle. It lets a Project stand in for a scheduler.
func (p *Project) Submit(text, root string, includeModules bool) uint64 {
	p.mu.Lock()
	p.includeModules = includeModules
	mode := p.settings.Mode()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return 0
	}
	return p.sched.SubmitQuery(search.Query{Text: text, Root: root, IncludeModules: includeModules, Mode: mode})
}

// SetIncludeModules changes the toggle for subsequent searches.
func (p *Project) SetIncludeModules(include bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.includeModules = include
}

// IncludeModules reports the current toggle.
func (p *Project) IncludeModules() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.includeModules
}

// Cancel cancels the running generation without starting another.
func (p *Project) Cancel() {
	p.sched.Cancel()
}

// Generation returns the most recent generation.
func (p *Project) Generation() uint64 {
	return p.sched.Generation()
}

// Superseded reports whether gen has been replaced.
func (p *Project) Superseded(gen uint64) bool {
	return p.sched.Superseded(gen)
}

// Reload applies settings to searches started afterwards.
func (p *Project) Reload(settings *config.Config) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrNotOpen
	}
	p.settings = settings.Clone()
	p.mu.Unlock()

	p.sched.SetOptions(settings.SearchOptions())
	return nil
}

func (p *Project) applyReload(cfg *config.Config) {
	if err := p.Reload(cfg); err != nil {
		p.logger.Warn("ignoring reloaded settings: %v", err)
		return
	}
	if p.onReload != nil {
		p.onReload(cfg)
	}
}

// Close stops watching, cancels any running search and waits for the
// scheduler to stop. No result is delivered after Close returns.
func (p *Project) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrNotOpen
	}
	p.closed = true
	p.mu.Unlock()

	var err error
	if p.watcher != nil {
		err = p.watcher.Close()
	}
	p.sched.Close()
	p.logger.WithField("root", p.root).Info("workspace closed")
	return err
}
