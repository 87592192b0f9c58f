package feed

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/storage"
)

var imgRegex = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// RSSSource pages the items of a single RSS or Atom feed. The feed is fetched
// on every call with conditional headers; a 304 reuses the previously parsed
// items.
type RSSSource struct {
	feedURL string
	opts    options
	parser  *gofeed.Parser

	mu           sync.Mutex
	items        []storage.Article
	etag         string
	lastModified string
}

func NewRSSSource(feedURL string, opts ...Option) *RSSSource {
	return &RSSSource{
		feedURL: feedURL,
		opts:    newOptions(opts),
		parser:  gofeed.NewParser(),
	}
}

func (s *RSSSource) FetchHeadlines(ctx context.Context, page, pageSize int) (*ArticlesPage, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return slicePage(items, page, pageSize), nil
}

// FetchSearch keeps items whose title, description or content contain query,
// ignoring case.
func (s *RSSSource) FetchSearch(ctx context.Context, query string, page, pageSize int) (*ArticlesPage, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	matched := lo.Filter(items, func(a storage.Article, _ int) bool {
		return strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.Description), needle) ||
			strings.Contains(strings.ToLower(a.Content), needle)
	})
	return slicePage(matched, page, pageSize), nil
}

func (s *RSSSource) fetch(ctx context.Context) ([]storage.Article, error) {
	s.mu.Lock()
	etag, lastModified := s.etag, s.lastModified
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := s.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		s.mu.Lock()
		defer s.mu.Unlock()
		debuglog.Debugf("feed %s not modified, reusing %d items", s.feedURL, len(s.items))
		return s.items, nil
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	items := convertItems(parsed)

	s.mu.Lock()
	s.items = items
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	s.mu.Unlock()

	return items, nil
}

func convertItems(parsed *gofeed.Feed) []storage.Article {
	var source *storage.Source
	if parsed.Title != "" {
		source = &storage.Source{Name: parsed.Title}
	}

	articles := make([]storage.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		article := storage.Article{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Description,
			Content:     getContent(item),
			ImageURL:    imageURL(item),
			Source:      source,
		}
		if item.PublishedParsed != nil {
			article.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else {
			article.PublishedAt = item.Published
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			article.Author = item.Authors[0].Name
		}
		articles = append(articles, article)
	}
	return lo.UniqBy(articles, func(a storage.Article) string { return a.URL })
}

func getContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		if enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	if m := imgRegex.FindStringSubmatch(item.Content + " " + item.Description); len(m) > 1 {
		return m[1]
	}
	return ""
}

// slicePage returns items [(page-1)*size, page*size). Pages past the end are
// empty.
func slicePage(items []storage.Article, page, pageSize int) *ArticlesPage {
	result := &ArticlesPage{Status: "ok", TotalResults: len(items), Articles: []storage.Article{}}
	if page < 1 || pageSize < 1 {
		return result
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return result
	}
	end := min(start+pageSize, len(items))
	result.Articles = append(result.Articles, items[start:end]...)
	return result
}
