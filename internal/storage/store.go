package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pders01/fwrd-news/internal/config"
	"github.com/pders01/fwrd-news/internal/stream"
)

// ErrEmptyURL is returned when an article without identity is written.
var ErrEmptyURL = errors.New("article url is empty")

// PersistenceError fails a single store operation. It never poisons the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store is the durable bookmark set keyed by article URL. Writes are
// serialised by the backend; every successful write republishes the ordered
// bookmark list to subscribers.
type Store interface {
	Upsert(ctx context.Context, article Article) error
	Delete(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
	// Toggle deletes the record when present and upserts it otherwise, in one
	// transaction. It reports whether the article is bookmarked afterwards.
	Toggle(ctx context.Context, article Article) (bool, error)
	List(ctx context.Context) ([]Article, error)
	Subscribe() (<-chan []Article, func())

	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	Close() error
}

// Open picks the backend named by driver.
func Open(driver, path string, timeout time.Duration) (Store, error) {
	switch driver {
	case config.DriverBolt, "":
		return NewStore(path, timeout)
	case config.DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// watchers is the live view shared by both backends.
type watchers struct {
	live *stream.Subject[[]Article]
}

func newWatchers() watchers {
	return watchers{live: stream.NewSubject[[]Article]()}
}

func (w watchers) Subscribe() (<-chan []Article, func()) {
	return w.live.Subscribe()
}

func (w watchers) publish(articles []Article) {
	w.live.Publish(articles)
}

// SortBookmarks orders articles newest first by publication date. Dates are
// parsed leniently, zone-less ones as UTC. Records with a missing or
// unparseable date follow all dated ones in URL order. Equal dates are broken
// by URL.
func SortBookmarks(articles []Article) {
	type keyed struct {
		at time.Time
		ok bool
	}
	keys := make(map[string]keyed, len(articles))
	for _, a := range articles {
		if a.PublishedAt == "" {
			continue
		}
		if t, err := dateparse.ParseIn(a.PublishedAt, time.UTC); err == nil {
			keys[a.URL] = keyed{at: t, ok: true}
		}
	}

	sort.SliceStable(articles, func(i, j int) bool {
		ki, kj := keys[articles[i].URL], keys[articles[j].URL]
		switch {
		case ki.ok && kj.ok:
			if !ki.at.Equal(kj.at) {
				return ki.at.After(kj.at)
			}
		case ki.ok != kj.ok:
			return ki.ok
		}
		return articles[i].URL < articles[j].URL
	})
}
