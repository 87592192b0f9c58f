package paging

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/storage"
	"github.com/pders01/fwrd-news/internal/stream"
)

// Config sizes an engine. Zero values fall back to PageSize, which itself
// defaults to DefaultMaxPageSize.
type Config struct {
	PageSize         int
	InitialLoadSize  int
	MaxPageSize      int
	PrefetchDistance int
}

func (c Config) withDefaults() Config {
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = DefaultMaxPageSize
	}
	if c.PageSize <= 0 {
		c.PageSize = c.MaxPageSize
	}
	if c.InitialLoadSize <= 0 {
		c.InitialLoadSize = c.PageSize
	}
	if c.PrefetchDistance <= 0 {
		c.PrefetchDistance = c.PageSize
	}
	return c
}

type edge int

const (
	edgeRefresh edge = iota
	edgeAppend
	edgePrepend
)

func (e edge) String() string {
	switch e {
	case edgeAppend:
		return "append"
	case edgePrepend:
		return "prepend"
	default:
		return "refresh"
	}
}

// Engine owns the page cache of one query. Each edge runs at most one load at
// a time. Results are applied by page key; results that belong to an older
// generation (before a refresh or Close) are dropped.
type Engine struct {
	source Source
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	out    *stream.Subject[Snapshot]

	mu     sync.Mutex
	pages  []Page
	states [3]LoadState
	failed [3]LoadParams
	anchor int
	gen    uint64
	closed bool
	loads  int
}

// NewEngine creates an idle engine. Nothing is fetched until Refresh.
func NewEngine(source Source, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		source: source,
		cfg:    cfg.withDefaults(),
		ctx:    ctx,
		cancel: cancel,
		anchor: -1,
	}
	e.out = stream.NewSubjectWith(e.snapshotLocked())
	return e
}

// Refresh reloads from the key the source derives from the current anchor.
// Loaded pages stay visible until the new first page arrives.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.gen++
	key := e.source.RefreshKey(e.stateLocked())
	e.states[edgeAppend] = idle(false)
	e.states[edgePrepend] = idle(false)
	e.launchLocked(edgeRefresh, LoadParams{Key: key, LoadSize: e.cfg.InitialLoadSize})
}

// LoadNext appends the page after the last loaded one.
func (e *Engine) LoadNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadEdgeLocked(edgeAppend)
}

// LoadPrevious prepends the page before the first loaded one.
func (e *Engine) LoadPrevious() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadEdgeLocked(edgePrepend)
}

// Retry reissues every edge currently in Error with the key that failed.
func (e *Engine) Retry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for _, ed := range []edge{edgeRefresh, edgePrepend, edgeAppend} {
		if e.states[ed].Status == Error {
			e.launchLocked(ed, e.failed[ed])
		}
	}
}

// Access records index as the consumer's position and prefetches when it is
// within PrefetchDistance of either end.
func (e *Engine) Access(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || index < 0 {
		return
	}
	e.anchor = index

	total := len(e.articlesLocked())
	if index >= total-e.cfg.PrefetchDistance {
		e.loadEdgeLocked(edgeAppend)
	}
	if index < e.cfg.PrefetchDistance {
		e.loadEdgeLocked(edgePrepend)
	}
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe replays the current snapshot and then every change.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	return e.out.Subscribe()
}

// Close cancels every in-flight load and ends all subscriptions. Loads that
// complete afterwards are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	e.mu.Unlock()

	e.cancel()
	e.out.Close()
}

// Wait blocks until every load goroutine has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Loads reports how many loads have been started, for diagnostics.
func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *Engine) loadEdgeLocked(ed edge) {
	if e.closed || len(e.pages) == 0 {
		return
	}
	if e.states[edgeRefresh].Status == Loading {
		return
	}
	st := e.states[ed]
	if st.Status != Idle || st.EndReached {
		return
	}

	var key *int
	if ed == edgeAppend {
		key = e.pages[len(e.pages)-1].NextKey
	} else {
		key = e.pages[0].PrevKey
	}
	if key == nil {
		e.states[ed] = idle(true)
		e.publishLocked()
		return
	}
	e.launchLocked(ed, LoadParams{Key: intPtr(*key), LoadSize: e.cfg.PageSize})
}

func (e *Engine) launchLocked(ed edge, params LoadParams) {
	e.states[ed] = LoadState{Status: Loading}
	e.loads++
	e.publishLocked()

	gen := e.gen
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res := e.source.Load(e.ctx, params)
		e.apply(ed, params, gen, res)
	}()
}

func (e *Engine) apply(ed edge, params LoadParams, gen uint64, res LoadResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.gen {
		debuglog.Debugf("discarding stale %s result for page %d", ed, params.key())
		return
	}

	if res.Err != nil || res.Page == nil {
		err := res.Err
		if err == nil {
			err = &FetchError{Key: params.key(), Err: errors.New("empty load result")}
		}
		if errors.Is(err, context.Canceled) {
			e.states[ed] = idle(false)
			e.publishLocked()
			return
		}
		debuglog.WithFields(map[string]any{"edge": ed.String(), "page": params.key()}).Warnf("load failed: %v", err)
		e.states[ed] = LoadState{Status: Error, Err: err}
		e.failed[ed] = params
		e.publishLocked()
		return
	}

	page := *res.Page
	switch ed {
	case edgeRefresh:
		e.pages = []Page{page}
		e.states[edgeRefresh] = idle(false)
		e.states[edgeAppend] = idle(page.NextKey == nil)
		e.states[edgePrepend] = idle(page.PrevKey == nil)
	case edgeAppend:
		e.insertLocked(page)
		e.states[edgeAppend] = idle(page.NextKey == nil)
	case edgePrepend:
		e.insertLocked(page)
		e.states[edgePrepend] = idle(page.PrevKey == nil)
	}
	e.publishLocked()
}

// insertLocked places page by key, replacing a page with the same key.
func (e *Engine) insertLocked(page Page) {
	i := sort.Search(len(e.pages), func(i int) bool { return e.pages[i].Key >= page.Key })
	if i < len(e.pages) && e.pages[i].Key == page.Key {
		e.pages[i] = page
		return
	}
	e.pages = append(e.pages, Page{})
	copy(e.pages[i+1:], e.pages[i:])
	e.pages[i] = page
}

// dedupedLocked returns the pages with articles whose URL already appeared in
// an earlier page removed. The first occurrence wins.
func (e *Engine) dedupedLocked() []Page {
	seen := make(map[string]struct{})
	pages := make([]Page, len(e.pages))
	for i, p := range e.pages {
		kept := make([]storage.Article, 0, len(p.Articles))
		for _, a := range p.Articles {
			if _, dup := seen[a.URL]; dup {
				continue
			}
			seen[a.URL] = struct{}{}
			kept = append(kept, a)
		}
		pages[i] = Page{Key: p.Key, PrevKey: p.PrevKey, NextKey: p.NextKey, Articles: kept}
	}
	return pages
}

func (e *Engine) articlesLocked() []storage.Article {
	articles := []storage.Article{}
	for _, p := range e.dedupedLocked() {
		articles = append(articles, p.Articles...)
	}
	return articles
}

func (e *Engine) stateLocked() State {
	return State{Pages: e.dedupedLocked(), Anchor: e.anchor}
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Articles: e.articlesLocked(),
		Refresh:  e.states[edgeRefresh],
		Append:   e.states[edgeAppend],
		Prepend:  e.states[edgePrepend],
	}
}

func (e *Engine) publishLocked() {
	e.out.Publish(e.snapshotLocked())
}
