// Package query turns a stream of raw query edits into one continuous feed of
// paging snapshots, switching the active engine whenever the effective query
// changes.
package query

import (
	"strings"
	"sync"
	"time"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/stream"
)

// DefaultDebounce is the quiet period before a query edit takes effect.
const DefaultDebounce = 400 * time.Millisecond

// DefaultGrace keeps the active engine alive after the last observer leaves,
// so quick resubscribes reuse its pages.
const DefaultGrace = 5 * time.Second

// EngineFactory builds a fresh, unrefreshed engine for an effective query. An
// empty query means headlines.
type EngineFactory func(query string) *paging.Engine

// Coordinator owns at most one active engine, and only while someone observes
// its output. The first observer starts the pipeline; once the last one has
// been gone for the grace period the engine is closed. The latest snapshot is
// kept across that gap.
type Coordinator struct {
	factory  EngineFactory
	debounce time.Duration
	grace    time.Duration
	out      *stream.Subject[paging.Snapshot]
	shared   *stream.Shared[paging.Snapshot]

	// switchMu serialises engine switches; mu guards the fields below.
	switchMu sync.Mutex

	mu        sync.Mutex
	timer     *time.Timer
	seq       uint64
	pending   string
	current   string
	forwarded bool
	connected bool
	engine    *paging.Engine
	stopPipe  func()
	switches  int
	closed    bool
}

type Option func(*Coordinator)

// WithGrace sets how long the engine outlives its last observer.
func WithGrace(d time.Duration) Option {
	return func(c *Coordinator) { c.grace = d }
}

// New returns an idle coordinator in headlines mode. Nothing is fetched until
// the first Subscribe; the initial empty query then goes through the same
// debounce as every later edit.
func New(factory EngineFactory, debounce time.Duration, opts ...Option) *Coordinator {
	if debounce < 0 {
		debounce = 0
	}
	c := &Coordinator{
		factory:  factory,
		debounce: debounce,
		grace:    DefaultGrace,
		out:      stream.NewSubject[paging.Snapshot](),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.shared = stream.NewShared(c.grace, c.connect)
	return c
}

// SetQuery records a raw edit. While observed, it is forwarded once no
// further edit arrives within the debounce window. Unobserved edits only
// update the query the next observer starts with.
func (c *Coordinator) SetQuery(raw string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.pending = raw
	c.stopTimerLocked()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	now := c.armLocked(seq)
	c.mu.Unlock()

	if now {
		c.fire(seq)
	}
}

// armLocked starts the debounce timer for seq. It reports true when there is
// no quiet period and the caller should fire immediately.
func (c *Coordinator) armLocked(seq uint64) bool {
	if c.debounce == 0 {
		return true
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(seq) })
	return false
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// connect runs when the first observer arrives.
func (c *Coordinator) connect() (<-chan paging.Snapshot, func()) {
	ch, cancel := c.out.Subscribe()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ch, cancel
	}
	c.connected = true
	c.seq++
	seq := c.seq
	now := c.armLocked(seq)
	c.mu.Unlock()

	if now {
		c.fire(seq)
	}
	return ch, func() {
		cancel()
		c.disconnect()
	}
}

// disconnect runs once the last observer has been gone for the grace period.
// The next observer starts a fresh engine for the pending query.
func (c *Coordinator) disconnect() {
	c.mu.Lock()
	c.connected = false
	c.forwarded = false
	c.stopTimerLocked()
	engine, stop := c.engine, c.stopPipe
	c.engine, c.stopPipe = nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if engine != nil {
		debuglog.Debugf("no observers, closing engine")
		engine.Close()
	}
}

func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	if c.closed || !c.connected || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	query := strings.TrimSpace(c.pending)
	c.mu.Unlock()

	c.forward(query)
}

func (c *Coordinator) forward(query string) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.closed || !c.connected || (c.forwarded && query == c.current) {
		c.mu.Unlock()
		return
	}
	c.current = query
	c.forwarded = true
	old, stop := c.engine, c.stopPipe
	c.engine, c.stopPipe = nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if old != nil {
		go old.Close()
	}

	debuglog.WithFields(map[string]any{"query": query}).Debugf("switching engine")
	c.out.Publish(paging.Snapshot{Refresh: paging.LoadState{Status: paging.Loading}})

	engine := c.factory(query)
	engine.Refresh()
	stop = c.pipe(engine)

	c.mu.Lock()
	if c.closed || !c.connected {
		c.mu.Unlock()
		stop()
		engine.Close()
		return
	}
	c.engine, c.stopPipe = engine, stop
	c.switches++
	c.mu.Unlock()
}

// pipe forwards engine snapshots into the shared output until the returned
// func is called. The func returns only after the last forward.
func (c *Coordinator) pipe(engine *paging.Engine) func() {
	ch, cancel := engine.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range ch {
			c.out.Publish(snap)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Subscribe replays the latest snapshot and follows every engine switch. The
// first subscription starts the pipeline.
func (c *Coordinator) Subscribe() (<-chan paging.Snapshot, func()) {
	return c.shared.Subscribe()
}

// Connected reports whether the pipeline is running for some observer.
func (c *Coordinator) Connected() bool {
	return c.shared.Connected()
}

// Snapshot returns the latest output, if any.
func (c *Coordinator) Snapshot() (paging.Snapshot, bool) {
	return c.out.Value()
}

// Query returns the effective query of the active engine.
func (c *Coordinator) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Switches reports how many engines have been started.
func (c *Coordinator) Switches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switches
}

func (c *Coordinator) active() *paging.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

func (c *Coordinator) LoadNext() {
	if e := c.active(); e != nil {
		e.LoadNext()
	}
}

func (c *Coordinator) Retry() {
	if e := c.active(); e != nil {
		e.Retry()
	}
}

func (c *Coordinator) Refresh() {
	if e := c.active(); e != nil {
		e.Refresh()
	}
}

func (c *Coordinator) Access(index int) {
	if e := c.active(); e != nil {
		e.Access(index)
	}
}

// Close stops the pending debounce, closes the active engine and ends every
// subscription.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.shared.Close()

	c.mu.Lock()
	engine, stop := c.engine, c.stopPipe
	c.engine, c.stopPipe = nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if engine != nil {
		engine.Close()
	}
	c.out.Close()
}
