package paging

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pders01/fwrd-news/internal/feed"
	"github.com/pders01/fwrd-news/internal/storage"
)

type fetchCall struct {
	query    string
	page     int
	pageSize int
}

// fakeFetcher serves count articles per page. Pages missing from counts are
// empty; pages in fail return that error.
type fakeFetcher struct {
	mu     sync.Mutex
	counts map[int]int
	fail   map[int]error
	calls  []fetchCall
}

func newFakeFetcher(counts map[int]int) *fakeFetcher {
	return &fakeFetcher{counts: counts, fail: map[int]error{}}
}

func (f *fakeFetcher) FetchHeadlines(ctx context.Context, page, pageSize int) (*feed.ArticlesPage, error) {
	return f.fetch("", page, pageSize)
}

func (f *fakeFetcher) FetchSearch(ctx context.Context, query string, page, pageSize int) (*feed.ArticlesPage, error) {
	return f.fetch(query, page, pageSize)
}

func (f *fakeFetcher) fetch(query string, page, pageSize int) (*feed.ArticlesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{query: query, page: page, pageSize: pageSize})
	if err := f.fail[page]; err != nil {
		return nil, err
	}
	n := min(f.counts[page], pageSize)
	articles := make([]storage.Article, n)
	for i := range articles {
		articles[i] = storage.Article{
			URL:   fmt.Sprintf("https://news.example.org/%s/%d/%d", query, page, i),
			Title: fmt.Sprintf("%s %d.%d", query, page, i),
		}
	}
	return &feed.ArticlesPage{Status: "ok", TotalResults: n, Articles: articles}, nil
}

func (f *fakeFetcher) setFail(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, page)
		return
	}
	f.fail[page] = err
}

func (f *fakeFetcher) pagesRequested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]int, len(f.calls))
	for i, c := range f.calls {
		pages[i] = c.page
	}
	return pages
}

func (f *fakeFetcher) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// gatedSource blocks every load until its key's gate is released.
type gatedSource struct {
	mu         sync.Mutex
	gates      map[int]chan struct{}
	articles   map[int][]storage.Article
	refreshKey *int
}

func newGatedSource() *gatedSource {
	return &gatedSource{gates: map[int]chan struct{}{}, articles: map[int][]storage.Article{}}
}

func (s *gatedSource) gate(key int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[key]
	if !ok {
		g = make(chan struct{})
		s.gates[key] = g
	}
	return g
}

func (s *gatedSource) release(key int) { close(s.gate(key)) }

func (s *gatedSource) setArticles(key int, urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	articles := make([]storage.Article, len(urls))
	for i, u := range urls {
		articles[i] = storage.Article{URL: u, Title: u}
	}
	s.articles[key] = articles
}

func (s *gatedSource) Load(ctx context.Context, params LoadParams) LoadResult {
	key := params.key()
	select {
	case <-s.gate(key):
	case <-ctx.Done():
		return LoadResult{Err: &FetchError{Key: key, Err: ctx.Err()}}
	}

	s.mu.Lock()
	articles, ok := s.articles[key]
	s.mu.Unlock()
	if !ok {
		articles = []storage.Article{
			{URL: fmt.Sprintf("https://x/%d-a", key)},
			{URL: fmt.Sprintf("https://x/%d-b", key)},
		}
	}

	page := &Page{Key: key, Articles: articles}
	if key != FirstPage {
		page.PrevKey = intPtr(key - 1)
	}
	if len(articles) > 0 {
		page.NextKey = intPtr(key + 1)
	}
	return LoadResult{Page: page}
}

func (s *gatedSource) RefreshKey(state State) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshKey
}

func waitSnapshot(t *testing.T, e *Engine, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(e.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return e.Snapshot()
}

func urls(articles []storage.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.URL
	}
	return out
}
