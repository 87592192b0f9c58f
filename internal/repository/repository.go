// Package repository is the surface the presentation layer talks to. It hands
// out paging engines for headlines and search and proxies bookmark storage.
package repository

import (
	"context"

	"github.com/pders01/fwrd-news/internal/config"
	"github.com/pders01/fwrd-news/internal/feed"
	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/storage"
)

type Repository struct {
	fetcher feed.PageFetcher
	store   storage.Store
	paging  paging.Config
}

func New(fetcher feed.PageFetcher, store storage.Store, cfg paging.Config) *Repository {
	return &Repository{fetcher: fetcher, store: store, paging: cfg}
}

// PagingConfig maps the paging section of the app config.
func PagingConfig(cfg *config.Config) paging.Config {
	return paging.Config{
		PageSize:         cfg.Paging.PageSize,
		InitialLoadSize:  cfg.Paging.PageSize,
		MaxPageSize:      cfg.Paging.MaxPageSize,
		PrefetchDistance: cfg.Paging.PrefetchDistance,
	}
}

// HeadlinesStream returns a new, unrefreshed engine over top headlines.
func (r *Repository) HeadlinesStream() *paging.Engine {
	return paging.NewEngine(paging.NewHeadlinesSource(r.fetcher, r.paging.MaxPageSize), r.paging)
}

// SearchStream returns a new, unrefreshed engine over search results.
func (r *Repository) SearchStream(query string) *paging.Engine {
	return paging.NewEngine(paging.NewSearchSource(r.fetcher, query, r.paging.MaxPageSize), r.paging)
}

// Stream picks headlines for an empty query and search otherwise. It has the
// shape of a query.EngineFactory.
func (r *Repository) Stream(query string) *paging.Engine {
	if query == "" {
		return r.HeadlinesStream()
	}
	return r.SearchStream(query)
}

func (r *Repository) BookmarkArticle(ctx context.Context, article storage.Article) error {
	return r.store.Upsert(ctx, article)
}

func (r *Repository) RemoveBookmark(ctx context.Context, url string) error {
	return r.store.Delete(ctx, url)
}

func (r *Repository) IsBookmarked(ctx context.Context, url string) (bool, error) {
	return r.store.Exists(ctx, url)
}

// Bookmarks returns the ordered bookmark list.
func (r *Repository) Bookmarks(ctx context.Context) ([]storage.Article, error) {
	return r.store.List(ctx)
}

// ToggleBookmark deletes or inserts article in one transaction and reports
// whether it is bookmarked afterwards.
func (r *Repository) ToggleBookmark(ctx context.Context, article storage.Article) (bool, error) {
	return r.store.Toggle(ctx, article)
}

// Subscribe follows the ordered bookmark list.
func (r *Repository) Subscribe() (<-chan []storage.Article, func()) {
	return r.store.Subscribe()
}
