package paging

import (
	"context"
	"fmt"

	"github.com/pders01/fwrd-news/internal/feed"
)

// DefaultMaxPageSize caps every request regardless of the load size asked for.
const DefaultMaxPageSize = 20

// FetcherSource binds a feed.PageFetcher to one mode for its whole life:
// headlines when query is empty, search otherwise.
type FetcherSource struct {
	fetcher     feed.PageFetcher
	query       string
	maxPageSize int
}

func NewHeadlinesSource(f feed.PageFetcher, maxPageSize int) *FetcherSource {
	return newFetcherSource(f, "", maxPageSize)
}

func NewSearchSource(f feed.PageFetcher, query string, maxPageSize int) *FetcherSource {
	return newFetcherSource(f, query, maxPageSize)
}

func newFetcherSource(f feed.PageFetcher, query string, maxPageSize int) *FetcherSource {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &FetcherSource{fetcher: f, query: query, maxPageSize: maxPageSize}
}

// Query returns the search term, or "" for headlines.
func (s *FetcherSource) Query() string { return s.query }

// Load fetches one page. Failures, including panics in the fetcher, come back
// as a *FetchError in the result.
func (s *FetcherSource) Load(ctx context.Context, params LoadParams) (result LoadResult) {
	key := params.key()
	size := params.LoadSize
	if size <= 0 || size > s.maxPageSize {
		size = s.maxPageSize
	}

	defer func() {
		if r := recover(); r != nil {
			result = LoadResult{Err: &FetchError{Key: key, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	var (
		page *feed.ArticlesPage
		err  error
	)
	if s.query == "" {
		page, err = s.fetcher.FetchHeadlines(ctx, key, size)
	} else {
		page, err = s.fetcher.FetchSearch(ctx, s.query, key, size)
	}
	if err != nil {
		return LoadResult{Err: &FetchError{Key: key, Err: err}}
	}

	out := &Page{Key: key}
	if page != nil {
		out.Articles = page.Articles
	}
	if key != FirstPage {
		out.PrevKey = intPtr(key - 1)
	}
	if len(out.Articles) > 0 {
		out.NextKey = intPtr(key + 1)
	}
	return LoadResult{Page: out}
}

// RefreshKey resumes from the page closest to the anchor.
func (s *FetcherSource) RefreshKey(state State) *int {
	return ClosestPageKey(state)
}

// ClosestPageKey finds the loaded page containing state.Anchor, or the
// nearest one when the anchor lies outside the loaded range, and returns the
// key that reloads it. It returns nil when there is no anchor.
func ClosestPageKey(state State) *int {
	if state.Anchor < 0 || len(state.Pages) == 0 {
		return nil
	}

	page := state.Pages[len(state.Pages)-1]
	offset := 0
	for _, p := range state.Pages {
		if state.Anchor < offset+len(p.Articles) {
			page = p
			break
		}
		offset += len(p.Articles)
	}

	switch {
	case page.PrevKey != nil:
		return intPtr(*page.PrevKey + 1)
	case page.NextKey != nil:
		return intPtr(*page.NextKey - 1)
	default:
		return nil
	}
}
