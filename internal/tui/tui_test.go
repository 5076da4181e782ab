package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scour/internal/project/scheduler"
	"github.com/dshills/scour/internal/project/search"
)

type submission struct {
	text    string
	root    string
	modules bool
}

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []submission
}

func (r *recordingSubmitter) Submit(text, root string, includeModules bool) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, submission{text, root, includeModules})
	return uint64(len(r.calls))
}

func (r *recordingSubmitter) last() submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	s.SetSize(60, 10)
	t.Cleanup(s.Fini)
	return s
}

func rowText(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y) //nolint:staticcheck // simulation readback
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestApp_KeystrokesSubmit(t *testing.T) {
	sub := &recordingSubmitter{}
	app := New(newScreen(t), sub, "/ws")

	for _, r := range "sea" {
		assert.False(t, app.HandleEvent(key(r)))
	}
	assert.Len(t, sub.calls, 3)
	assert.Equal(t, submission{"sea", "/ws", false}, sub.last())

	app.HandleEvent(tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone))
	assert.Equal(t, "se", sub.last().text)

	app.HandleEvent(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	assert.Equal(t, submission{"se", "/ws", true}, sub.last())
}

func TestApp_EscapeQuits(t *testing.T) {
	app := New(newScreen(t), &recordingSubmitter{}, "/ws")
	assert.True(t, app.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestApp_DrawsResults(t *testing.T) {
	screen := newScreen(t)
	app := New(screen, &recordingSubmitter{}, "/ws")
	app.HandleEvent(key('x'))

	app.HandleEvent(tcell.NewEventInterrupt(scheduler.Result{
		Generation: 1,
		Matches: []search.MatchRecord{
			{Path: "/ws/a.py", Line: 3, Start: 4, End: 10, Text: "def search_items():"},
		},
		Stats: search.Stats{FilesMatched: 1},
	}))
	app.Draw()

	assert.Equal(t, "> x", rowText(screen, 0))
	assert.Contains(t, rowText(screen, 1), "1 matches in 1 files")
	assert.Equal(t, "a.py:3:5: def search_items():", rowText(screen, 2))

	_, _, style, _ := screen.GetContent(len("a.py:3:5: def "), 2) //nolint:staticcheck // simulation readback
	assert.Equal(t, styleMatch, style)
}

func TestApp_IgnoresOlderResult(t *testing.T) {
	screen := newScreen(t)
	app := New(screen, &recordingSubmitter{}, "/ws")

	app.HandleEvent(tcell.NewEventInterrupt(scheduler.Result{Generation: 2}))
	app.HandleEvent(tcell.NewEventInterrupt(scheduler.Result{
		Generation: 1,
		Matches:    []search.MatchRecord{{Path: "/ws/old.txt", Line: 1, Text: "old"}},
	}))
	app.Draw()

	assert.Contains(t, rowText(screen, 1), "#2")
	assert.Empty(t, rowText(screen, 2))
}

func TestApp_DrawsFailure(t *testing.T) {
	screen := newScreen(t)
	app := New(screen, &recordingSubmitter{}, "/missing")

	app.HandleEvent(tcell.NewEventInterrupt(scheduler.Result{
		Generation: 1,
		Err:        errors.New("root directory unreadable"),
	}))
	app.Draw()

	assert.Contains(t, rowText(screen, 1), "failed")
	assert.Equal(t, "root directory unreadable", rowText(screen, 2))
}

func TestApp_RunStopsOnContext(t *testing.T) {
	app := New(newScreen(t), &recordingSubmitter{}, "/ws")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunDeliversAndQuits(t *testing.T) {
	screen := newScreen(t)
	app := New(screen, &recordingSubmitter{}, "/ws")

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	app.Deliver(scheduler.Result{Generation: 1})
	app.Notify("config reloaded")
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Esc")
	}
}
