// Package paging turns a page-numbered source into one logical, growing
// article sequence with per-edge load states.
package paging

import (
	"context"
	"fmt"

	"github.com/pders01/fwrd-news/internal/storage"
)

// FirstPage is the key used when no key is supplied.
const FirstPage = 1

// Status is the load status of one edge.
type Status int

const (
	Idle Status = iota
	Loading
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// LoadState describes one edge: refresh, append or prepend. EndReached is only
// meaningful for Idle append and prepend edges.
type LoadState struct {
	Status     Status
	EndReached bool
	Err        error
}

func idle(endReached bool) LoadState { return LoadState{Status: Idle, EndReached: endReached} }

func (s LoadState) String() string {
	switch {
	case s.Status == Error:
		return fmt.Sprintf("error(%v)", s.Err)
	case s.EndReached:
		return "idle(end)"
	default:
		return s.Status.String()
	}
}

// Page is the result of one successful load. A nil PrevKey or NextKey means
// there is nothing further in that direction.
type Page struct {
	Key      int
	PrevKey  *int
	NextKey  *int
	Articles []storage.Article
}

// LoadParams names the page to load. A nil Key means FirstPage.
type LoadParams struct {
	Key      *int
	LoadSize int
}

func (p LoadParams) key() int {
	if p.Key == nil {
		return FirstPage
	}
	return *p.Key
}

// LoadResult carries either a page or the error that prevented it.
type LoadResult struct {
	Page *Page
	Err  error
}

// State is what a Source sees when asked for a refresh key. Pages hold the
// deduplicated articles, so positions match what consumers observe. Anchor is
// -1 when nothing has been observed.
type State struct {
	Pages  []Page
	Anchor int
}

// Source loads pages for one fixed query.
type Source interface {
	Load(ctx context.Context, params LoadParams) LoadResult
	RefreshKey(state State) *int
}

// FetchError wraps a failed page fetch. It is recoverable by retrying Key.
type FetchError struct {
	Key int
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading page %d: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Snapshot is the consumer-facing view of an engine.
type Snapshot struct {
	Articles []storage.Article
	Refresh  LoadState
	Append   LoadState
	Prepend  LoadState
}

func intPtr(v int) *int { return &v }
