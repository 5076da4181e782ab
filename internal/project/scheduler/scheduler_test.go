package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/scour/internal/project/search"
	"github.com/dshills/scour/internal/project/vfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedRunner blocks every run until released or cancelled, and records
// how many runs overlap. A stubborn runner ignores cancellation until
// released.
type gatedRunner struct {
	release  chan struct{}
	started  chan string
	stubborn bool

	running    atomic.Int32
	maxRunning atomic.Int32
	runs       atomic.Int32
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{
		release: make(chan struct{}),
		started: make(chan string, 64),
	}
}

func (r *gatedRunner) Run(ctx context.Context, q search.Query) (search.Outcome, error) {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		m := r.maxRunning.Load()
		if n <= m || r.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	r.runs.Add(1)
	r.started <- q.Text

	if r.stubborn {
		<-r.release
		return search.Outcome{Matches: []search.MatchRecord{{Path: q.Root + "/hit", Line: 1, Text: q.Text}}}, nil
	}
	select {
	case <-ctx.Done():
		return search.Outcome{}, search.ErrCanceled
	case <-r.release:
	}
	return search.Outcome{Matches: []search.MatchRecord{{Path: q.Root + "/hit", Line: 1, Text: q.Text}}}, nil
}

// collector records delivered results.
type collector struct {
	mu      sync.Mutex
	results []Result
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func (c *collector) snapshot() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func waitStarted(t *testing.T, r *gatedRunner) string {
	t.Helper()
	select {
	case text := <-r.started:
		return text
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run to start")
		return ""
	}
}

func TestScheduler_GenerationsIncrease(t *testing.T) {
	runner := newGatedRunner()
	s := New(runner, nil)
	defer s.Close()

	g1 := s.Submit("a", "/ws", false)
	g2 := s.Submit("ab", "/ws", false)
	g3 := s.Submit("abc", "/ws", false)

	assert.Equal(t, uint64(1), g1)
	assert.Equal(t, uint64(2), g2)
	assert.Equal(t, uint64(3), g3)
	assert.Equal(t, uint64(3), s.Generation())
	assert.True(t, s.Superseded(g1))
	assert.False(t, s.Superseded(g3))
}

func TestScheduler_SupersededNeverDelivered(t *testing.T) {
	runner := newGatedRunner()
	runner.stubborn = true
	c := newCollector()
	s := New(runner, c.deliver)
	defer s.Close()

	s.Submit("s", "/ws", false)
	assert.Equal(t, "s", waitStarted(t, runner))

	// Rapid typing while the first search is in flight.
	s.Submit("se", "/ws", false)
	s.Submit("sea", "/ws", false)
	last := s.Submit("search", "/ws", false)

	// The first run finishes late; its result is discarded and the loop
	// picks up only the newest pending generation.
	close(runner.release)
	assert.Equal(t, "search", waitStarted(t, runner))
	c.wait(t)

	results := c.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, last, results[0].Generation)
	assert.Equal(t, "search", results[0].Query.Text)
	assert.Equal(t, "search", results[0].Matches[0].Text)
	assert.False(t, results[0].Failed())

	assert.Equal(t, int32(1), runner.maxRunning.Load())
	assert.Equal(t, int32(2), runner.runs.Load())
}

func TestScheduler_CancelSuppressesDelivery(t *testing.T) {
	runner := newGatedRunner()
	c := newCollector()
	s := New(runner, c.deliver)

	gen := s.Submit("search", "/ws", false)
	waitStarted(t, runner)
	s.Cancel()

	assert.Equal(t, gen, s.Generation())
	close(runner.release)
	s.Close()

	assert.Empty(t, c.snapshot())
}

func TestScheduler_CancelAfterCompletionIsNoop(t *testing.T) {
	runner := newGatedRunner()
	close(runner.release)
	c := newCollector()
	s := New(runner, c.deliver)
	defer s.Close()

	s.Submit("search", "/ws", false)
	c.wait(t)
	s.Cancel()

	assert.Len(t, c.snapshot(), 1)
}

func TestScheduler_SubmitAfterClose(t *testing.T) {
	s := New(newGatedRunner(), nil)
	s.Close()
	s.Close()

	assert.Zero(t, s.Submit("search", "/ws", false))
}

func TestScheduler_CloseCancelsRunningSearch(t *testing.T) {
	runner := newGatedRunner()
	c := newCollector()
	s := New(runner, c.deliver)

	s.Submit("search", "/ws", false)
	waitStarted(t, runner)
	s.Close()

	assert.Empty(t, c.snapshot())
	assert.Zero(t, runner.running.Load())
}

func TestWorker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{ctx: ctx, cancel: cancel}

	assert.Equal(t, StatePending, w.State())
	assert.True(t, w.transition(StatePending, StateRunning))
	assert.True(t, w.transition(StateRunning, StateCompleted))
	assert.False(t, w.cancelIfActive())
	assert.Equal(t, StateCompleted, w.State())
	assert.NoError(t, ctx.Err())

	ctx2, cancel2 := context.WithCancel(context.Background())
	w2 := &worker{ctx: ctx2, cancel: cancel2}
	assert.True(t, w2.cancelIfActive())
	assert.Equal(t, StateCancelled, w2.State())
	assert.Error(t, ctx2.Err())
	assert.False(t, w2.transition(StatePending, StateRunning))
	cancel()
}

func workspace() *vfs.MemFS {
	m := vfs.NewMemFS()
	m.AddFile("/ws/a.py", "import os\ndef search_items():\n")
	m.AddFile("/ws/node_modules/lib/index.js", "search\n")
	m.AddFile("/ws/docs/readme.txt", "how to search\n")
	return m
}

func TestScheduler_WithEngine(t *testing.T) {
	engine := search.NewEngine(workspace(), search.DefaultOptions())
	c := newCollector()
	s := New(engine, c.deliver)
	defer s.Close()

	gen := s.Submit("search", "/ws", false)
	c.wait(t)

	results := c.snapshot()
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, gen, res.Generation)
	require.NoError(t, res.Err)
	assert.Equal(t, []search.MatchRecord{
		{Path: "/ws/a.py", Line: 2, Start: 4, End: 10, Text: "def search_items():"},
		{Path: "/ws/docs/readme.txt", Line: 1, Start: 7, End: 13, Text: "how to search"},
	}, res.Matches)
}

func TestScheduler_RootFailureDelivered(t *testing.T) {
	engine := search.NewEngine(workspace(), search.DefaultOptions())
	c := newCollector()
	s := New(engine, c.deliver)
	defer s.Close()

	s.Submit("search", "/missing", false)
	c.wait(t)

	results := c.snapshot()
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
	assert.ErrorIs(t, results[0].Err, search.ErrRootUnreadable)
	assert.Empty(t, results[0].Matches)
}

func TestScheduler_EmptyQueryDeliversEmptyBatch(t *testing.T) {
	engine := search.NewEngine(workspace(), search.DefaultOptions())
	c := newCollector()
	s := New(engine, c.deliver)
	defer s.Close()

	s.Submit("", "/ws", false)
	c.wait(t)

	results := c.snapshot()
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed())
	assert.Empty(t, results[0].Matches)
}

func TestScheduler_ModeAndOptions(t *testing.T) {
	engine := search.NewEngine(workspace(), search.DefaultOptions())
	c := newCollector()
	s := New(engine, c.deliver, WithMode(search.ModeIgnoreCase))
	defer s.Close()

	opts := search.DefaultOptions()
	opts.Filter.Exclude = []string{"docs/**"}
	require.True(t, s.SetOptions(opts))

	s.Submit("SEARCH", "/ws", false)
	c.wait(t)

	results := c.snapshot()
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "/ws/a.py", results[0].Matches[0].Path)
	assert.Equal(t, search.ModeIgnoreCase, results[0].Query.Mode)

	other := New(newGatedRunner(), nil)
	defer other.Close()
	assert.False(t, other.SetOptions(opts))
}
