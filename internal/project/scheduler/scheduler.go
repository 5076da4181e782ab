// Package scheduler owns the lifecycle of workspace searches.
//
// Each submission gets the next generation number and supersedes every
// earlier one. A single background goroutine runs at most one search at a
// time; a superseded search is cancelled cooperatively and its result is
// never delivered.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/scour/internal/logging"
	"github.com/dshills/scour/internal/project/search"
)

// State is the lifecycle state of one generation.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Runner performs one complete search. *search.Engine implements it.
type Runner interface {
	Run(ctx context.Context, q search.Query) (search.Outcome, error)
}

// optionsSetter is implemented by runners whose options can be replaced
// between generations.
type optionsSetter interface {
	SetOptions(search.Options)
}

// Result is the terminal output of one generation.
type Result struct {
	Generation uint64
	Query      search.Query

	// Matches are in walk order, then line order.
	Matches []search.MatchRecord

	Stats     search.Stats
	Truncated bool

	// Err is set only when the root directory could not be listed.
	Err error
}

// Failed reports whether the search failed at the root.
func (r Result) Failed() bool {
	return r.Err != nil
}

// DeliverFunc receives results. It is called from the scheduler's
// background goroutine, at most once per generation. A Submit racing with
// the call does not stop it, so a receiver that must show only the newest
// batch checks Superseded(r.Generation) before using it.
type DeliverFunc func(Result)

// worker is the handle of one generation's scan.
type worker struct {
	id     string
	query  search.Query
	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
}

func (w *worker) State() State {
	return State(w.state.Load())
}

func (w *worker) transition(from, to State) bool {
	return w.state.CompareAndSwap(int32(from), int32(to))
}

// cancelIfActive moves a pending or running worker to Cancelled and signals
// its context. Completed workers are left alone.
func (w *worker) cancelIfActive() bool {
	for {
		s := w.State()
		if s == StateCompleted || s == StateCancelled {
			return false
		}
		if w.transition(s, StateCancelled) {
			w.cancel()
			return true
		}
	}
}

// Scheduler serialises searches by generation.
type Scheduler struct {
	runner  Runner
	deliver DeliverFunc
	logger  *logging.Logger
	mode    search.Mode

	mu         sync.Mutex
	generation uint64
	active     *worker // pending or running
	pending    *worker // single slot awaiting the loop
	closed     bool

	wake chan struct{}
	done chan struct{}
	base context.Context
	stop context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMode sets the match mode used by Submit.
func WithMode(m search.Mode) Option {
	return func(s *Scheduler) {
		s.mode = m
	}
}

// New creates a scheduler and starts its background goroutine.
// Call Close to stop it.
func New(runner Runner, deliver DeliverFunc, opts ...Option) *Scheduler {
	base, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:  runner,
		deliver: deliver,
		logger:  logging.Nop(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		base:    base,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")

	go s.loop()
	return s
}

// Submit starts a search for text under root and returns its generation.
// The previous generation, if still pending or running, is cancelled.
// Submit never blocks on I/O. It returns 0 after Close.
func (s *Scheduler) Submit(text, root string, includeModules bool) uint64 {
	return s.SubmitQuery(search.Query{
		Text:           text,
		Root:           root,
		IncludeModules: includeModules,
		Mode:           s.mode,
	})
}

// SubmitQuery is like Submit but takes a complete query. The query's
// Generation field is overwritten.
func (s *Scheduler) SubmitQuery(q search.Query) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	s.generation++
	q.Generation = s.generation

	if s.active != nil && s.active.cancelIfActive() {
		s.logger.Debug("cancelled generation %d", s.active.query.Generation)
	}

	ctx, cancel := context.WithCancel(s.base)
	w := &worker{
		id:     uuid.NewString(),
		query:  q,
		ctx:    ctx,
		cancel: cancel,
	}
	s.active = w
	s.pending = w

	s.logger.WithField("worker", w.id).Debug("submitted generation %d: %q", q.Generation, q.Text)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return q.Generation
}

// Cancel cancels the current generation without starting a new one.
// Cancelling a generation that already completed is a no-op.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.cancelIfActive() {
		s.logger.Debug("cancelled generation %d", s.active.query.Generation)
	}
	s.active = nil
	s.pending = nil
}

// Generation returns the most recently assigned generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Superseded reports whether gen has been replaced by a later submission.
func (s *Scheduler) Superseded(gen uint64) bool {
	return gen < s.Generation()
}

// SetOptions replaces the engine options for subsequent generations.
// It reports false if the runner does not support options.
func (s *Scheduler) SetOptions(opts search.Options) bool {
	setter, ok := s.runner.(optionsSetter)
	if !ok {
		return false
	}
	setter.SetOptions(opts)
	return true
}

// Close cancels any active search and waits for the background goroutine
// to exit. No result is delivered after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	if s.active != nil {
		s.active.cancelIfActive()
	}
	s.active = nil
	s.pending = nil
	s.mu.Unlock()

	s.stop()
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.base.Done():
			return
		case <-s.wake:
		}

		w := s.take()
		if w == nil {
			continue
		}
		s.run(w)
	}
}

// take empties the pending slot.
func (s *Scheduler) take() *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.pending
	s.pending = nil
	return w
}

func (s *Scheduler) run(w *worker) {
	defer w.cancel()
	log := s.logger.WithField("worker", w.id)

	if !w.transition(StatePending, StateRunning) {
		log.Debug("generation %d cancelled before start", w.query.Generation)
		return
	}

	out, err := s.runner.Run(w.ctx, w.query)
	if errors.Is(err, search.ErrCanceled) || w.ctx.Err() != nil {
		log.Debug("generation %d stopped", w.query.Generation)
		return
	}

	res := Result{
		Generation: w.query.Generation,
		Query:      w.query,
		Matches:    out.Matches,
		Stats:      out.Stats,
		Truncated:  out.Truncated,
		Err:        err,
	}

	if !s.complete(w) {
		log.Debug("generation %d superseded, result discarded", w.query.Generation)
		return
	}

	if err != nil {
		log.Warn("generation %d failed: %v", w.query.Generation, err)
	} else {
		log.Debug("generation %d delivered %d matches in %s", w.query.Generation, len(res.Matches), out.Stats.Elapsed)
	}
	if s.deliver != nil {
		s.deliver(res)
	}
}

// complete marks w Completed if it is still the current generation. The
// generation check and the transition happen under the lock, so a
// concurrent Submit either sees a completed worker or prevents completion.
func (s *Scheduler) complete(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.generation != w.query.Generation {
		return false
	}
	if !w.transition(StateRunning, StateCompleted) {
		return false
	}
	if s.active == w {
		s.active = nil
	}
	return true
}
