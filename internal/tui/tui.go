// Package tui is the interactive search screen: a query prompt whose every
// keystroke submits a new search generation, and a result list that shows
// the latest delivered generation.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/scheduler"
)

// Submitter starts a search generation. *scheduler.Scheduler implements it.
type Submitter interface {
	Submit(text, root string, includeModules bool) uint64
}

// quitEvent asks the event loop to return.
type quitEvent struct{}

var (
	styleDefault = tcell.StyleDefault
	stylePrompt  = tcell.StyleDefault.Bold(true)
	styleStatus  = tcell.StyleDefault.Reverse(true)
	styleMatch   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleLoc     = tcell.StyleDefault.Foreground(tcell.ColorTeal)
)

// App owns the screen and the interaction state.
type App struct {
	screen tcell.Screen
	search Submitter
	root   string
	logger *logging.Logger

	mu             sync.Mutex
	query          []rune
	includeModules bool
	submitted      uint64
	result         *scheduler.Result
	offset         int
	notice         string
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithModules sets the initial include-modules toggle.
func WithModules(include bool) Option {
	return func(a *App) {
		a.includeModules = include
	}
}

// New creates an App drawing on screen. The screen must already be
// initialised; the caller finalises it.
func New(screen tcell.Screen, search Submitter, root string, opts ...Option) *App {
	a := &App{
		screen: screen,
		search: search,
		root:   root,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Deliver hands a result to the event loop. It is safe to call from any
// goroutine and is meant to be the scheduler's DeliverFunc.
func (a *App) Deliver(r scheduler.Result) {
	if err := a.screen.PostEvent(tcell.NewEventInterrupt(r)); err != nil {
		a.logger.Warn("dropping result for generation %d: %v", r.Generation, err)
	}
}

// Notify shows a one-line message in the status bar, e.g. after a config
// reload. Safe to call from any goroutine.
func (a *App) Notify(msg string) {
	_ = a.screen.PostEvent(tcell.NewEventInterrupt(msg))
}

// Run processes events until Esc, Ctrl-C or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.screen.PostEvent(tcell.NewEventInterrupt(quitEvent{}))
		case <-stop:
		}
	}()

	a.Draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if a.HandleEvent(ev) {
			return nil
		}
		a.Draw()
	}
}

// HandleEvent applies one event and reports whether the loop should quit.
func (a *App) HandleEvent(ev tcell.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(e)
	case *tcell.EventInterrupt:
		switch data := e.Data().(type) {
		case quitEvent:
			return true
		case scheduler.Result:
			a.accept(data)
		case string:
			a.notice = data
		}
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return false
}

func (a *App) handleKey(e *tcell.EventKey) bool {
	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyTab:
		a.includeModules = !a.includeModules
		a.submit()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(a.query) > 0 {
			a.query = a.query[:len(a.query)-1]
			a.submit()
		}
	case tcell.KeyCtrlU:
		if len(a.query) > 0 {
			a.query = a.query[:0]
			a.submit()
		}
	case tcell.KeyDown:
		a.scroll(1)
	case tcell.KeyUp:
		a.scroll(-1)
	case tcell.KeyPgDn:
		a.scroll(a.pageSize())
	case tcell.KeyPgUp:
		a.scroll(-a.pageSize())
	case tcell.KeyRune:
		a.query = append(a.query, e.Rune())
		a.submit()
	}
	return false
}

func (a *App) submit() {
	a.submitted = a.search.Submit(string(a.query), a.root, a.includeModules)
	a.notice = ""
}

// accept keeps the newest result; the scheduler never delivers superseded
// generations, but a result posted just before a new keystroke can still be
// queued behind it.
func (a *App) accept(r scheduler.Result) {
	if a.result != nil && r.Generation < a.result.Generation {
		return
	}
	a.result = &r
	a.offset = 0
}

func (a *App) scroll(delta int) {
	if a.result == nil {
		return
	}
	a.offset += delta
	if limit := len(a.result.Matches) - a.pageSize(); a.offset > limit {
		a.offset = limit
	}
	if a.offset < 0 {
		a.offset = 0
	}
}

func (a *App) pageSize() int {
	_, h := a.screen.Size()
	if h <= 2 {
		return 1
	}
	return h - 2
}

// Draw renders the prompt, the status bar and the visible results.
func (a *App) Draw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.screen.Clear()
	w, h := a.screen.Size()

	x := a.put(0, 0, w, "> ", stylePrompt)
	x = a.put(x, 0, w, string(a.query), styleDefault)
	a.screen.ShowCursor(x, 0)

	if h > 1 {
		a.fillRow(1, w, styleStatus)
		a.put(0, 1, w, a.status(), styleStatus)
	}

	if a.result != nil && !a.result.Failed() {
		for i, row := 0, 2; row < h && a.offset+i < len(a.result.Matches); i, row = i+1, row+1 {
			a.drawMatch(row, w, a.offset+i)
		}
	} else if a.result != nil && h > 2 {
		a.put(0, 2, w, a.result.Err.Error(), styleError)
	}

	a.screen.Show()
}

func (a *App) status() string {
	modules := "off"
	if a.includeModules {
		modules = "on"
	}

	var text string
	switch {
	case a.result == nil:
		text = fmt.Sprintf(" %s", a.root)
	case a.result.Failed():
		text = fmt.Sprintf(" #%d failed", a.result.Generation)
	default:
		text = fmt.Sprintf(" #%d  %d matches in %d files", a.result.Generation, len(a.result.Matches), a.result.Stats.FilesMatched)
		if a.result.Truncated {
			text += " (truncated)"
		}
	}
	if a.result != nil && a.submitted > a.result.Generation {
		text += "  searching…"
	}
	text += fmt.Sprintf("  [modules: %s]", modules)
	if a.notice != "" {
		text += "  " + a.notice
	}
	return text
}

func (a *App) drawMatch(row, w, idx int) {
	m := a.result.Matches[idx]
	path := m.Path
	if rel, err := filepath.Rel(a.root, m.Path); err == nil {
		path = rel
	}

	x := a.put(0, row, w, fmt.Sprintf("%s:%d:%d: ", path, m.Line, m.Column()), styleLoc)
	for i, r := range []rune(m.Text) {
		style := styleDefault
		if i >= m.Start && i < m.End {
			style = styleMatch
		}
		x = a.putRune(x, row, w, r, style)
		if x >= w {
			return
		}
	}
}

// put draws s from column x and returns the column after it.
func (a *App) put(x, y, w int, s string, style tcell.Style) int {
	for _, r := range s {
		x = a.putRune(x, y, w, r, style)
		if x >= w {
			break
		}
	}
	return x
}

func (a *App) putRune(x, y, w int, r rune, style tcell.Style) int {
	if r == '\t' {
		r = ' '
	}
	width := uniseg.StringWidth(string(r))
	if width == 0 {
		return x
	}
	if x+width > w {
		return w
	}
	a.screen.SetContent(x, y, r, nil, style)
	return x + width
}

func (a *App) fillRow(y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		a.screen.SetContent(x, y, ' ', nil, style)
	}
}
