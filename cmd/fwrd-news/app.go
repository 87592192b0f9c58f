package main

import (
	"fmt"

	"github.com/pders01/fwrd-news/internal/bookmarks"
	"github.com/pders01/fwrd-news/internal/config"
	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/feed"
	"github.com/pders01/fwrd-news/internal/repository"
	"github.com/pders01/fwrd-news/internal/search"
	"github.com/pders01/fwrd-news/internal/storage"
)

// app is the composition root: every component is built here by constructor.
type app struct {
	cfg       *config.Config
	store     storage.Store
	fetcher   feed.PageFetcher
	repo      *repository.Repository
	index     *search.Index
	bookmarks *bookmarks.Service
}

func openApp(cfg *config.Config) (*app, error) {
	fetcher, err := feed.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("opening bookmark store: %w", err)
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		repo:    repository.New(fetcher, store, repository.PagingConfig(cfg)),
	}

	var opts []bookmarks.Option
	if idx, err := search.Open(cfg.Database.SearchIndex); err != nil {
		debuglog.Warnf("bookmark search disabled: %v", err)
	} else {
		a.index = idx
		opts = append(opts, bookmarks.WithIndexer(idx))
	}
	a.bookmarks = bookmarks.NewService(a.repo, cfg.Bookmarks.ShareGrace, opts...)

	return a, nil
}

func (a *app) Close() error {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			debuglog.Warnf("closing search index: %v", err)
		}
	}
	return a.store.Close()
}
