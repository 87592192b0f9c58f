// Package feed adapts remote article sources to a page-numbered contract.
// Fetchers are stateless with respect to paging: every call requests exactly
// one page and never retries.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pders01/fwrd-news/internal/config"
	"github.com/pders01/fwrd-news/internal/storage"
	"github.com/pders01/fwrd-news/internal/validation"
)

const (
	userAgent      = "fwrd-news/1.0 (news reader; github.com/pders01/fwrd-news)"
	defaultTimeout = 30 * time.Second
)

// ArticlesPage is one page of results as returned by the remote API.
type ArticlesPage struct {
	Status       string
	TotalResults int
	Articles     []storage.Article
}

// PageFetcher requests a single page of headlines or search results. Pages
// are 1-based.
type PageFetcher interface {
	FetchHeadlines(ctx context.Context, page, pageSize int) (*ArticlesPage, error)
	FetchSearch(ctx context.Context, query string, page, pageSize int) (*ArticlesPage, error)
}

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("HTTP error: %d", e.StatusCode)
}

// NewFromConfig builds the fetcher selected by cfg.API.Provider.
func NewFromConfig(cfg *config.Config) (PageFetcher, error) {
	v := validation.NewURLValidator()
	v.AllowLocalhost = cfg.API.AllowLocalhost
	v.AllowPrivateIPs = cfg.API.AllowLocalhost

	client := &http.Client{Timeout: cfg.API.HTTPTimeout}
	if client.Timeout <= 0 {
		client.Timeout = defaultTimeout
	}
	ua := cfg.API.UserAgent
	if ua == "" {
		ua = userAgent
	}

	switch cfg.API.Provider {
	case config.ProviderRSS:
		feedURL, err := v.Endpoint(cfg.RSS.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid rss url: %w", err)
		}
		return NewRSSSource(feedURL, WithHTTPClient(client), WithUserAgent(ua)), nil
	case config.ProviderNewsAPI, "":
		baseURL, err := v.Endpoint(cfg.API.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid api base url: %w", err)
		}
		return NewClient(cfg.API.Key,
			WithBaseURL(baseURL),
			WithHTTPClient(client),
			WithUserAgent(ua),
			WithCountry(cfg.API.Country),
		), nil
	default:
		return nil, fmt.Errorf("unknown api provider %q", cfg.API.Provider)
	}
}

type options struct {
	baseURL   string
	client    *http.Client
	userAgent string
	country   string
}

// Option configures a fetcher.
type Option func(*options)

func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func WithCountry(country string) Option {
	return func(o *options) { o.country = country }
}

// WithTimeout replaces the client with one using the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.client = &http.Client{Timeout: d} }
}

func newOptions(opts []Option) options {
	o := options{
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: userAgent,
		country:   "us",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
