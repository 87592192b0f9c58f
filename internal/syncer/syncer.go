// Package syncer checks for new headlines in the background. It is
// independent of any paging engine and never surfaces errors to its caller.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/feed"
	"github.com/pders01/fwrd-news/internal/storage"
)

const (
	// SeenURLsKey is the metadata key holding the URLs of the last sync.
	SeenURLsKey = "sync.seen_urls"

	NewHeadlinesMessage = "New headlines are available."

	defaultPageSize = 20
	defaultTimeout  = 2 * time.Minute
)

// Result tells the scheduler whether the pass finished or should be retried.
type Result int

const (
	Success Result = iota
	Retry
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "retry"
}

// Notifier delivers the user-facing message when new headlines appear.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// MetaStore persists small string values between runs.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

type Syncer struct {
	fetcher  feed.PageFetcher
	meta     MetaStore
	notifier Notifier
	pageSize int
	timeout  time.Duration
	group    singleflight.Group
}

type Option func(*Syncer)

func WithPageSize(n int) Option {
	return func(s *Syncer) { s.pageSize = n }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.timeout = d }
}

func New(fetcher feed.PageFetcher, meta MetaStore, notifier Notifier, opts ...Option) *Syncer {
	s := &Syncer{
		fetcher:  fetcher,
		meta:     meta,
		notifier: notifier,
		pageSize: defaultPageSize,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sync pass. Concurrent calls share a single pass and its
// result.
func (s *Syncer) Run(ctx context.Context) Result {
	v, _, _ := s.group.Do("sync", func() (any, error) {
		return s.run(ctx), nil
	})
	return v.(Result)
}

func (s *Syncer) run(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			debuglog.Errorf("sync panicked: %v", r)
			result = Retry
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	page, err := s.fetcher.FetchHeadlines(ctx, 1, s.pageSize)
	if err != nil {
		debuglog.Warnf("sync fetch failed: %v", err)
		return Retry
	}

	current := lo.Uniq(lo.FilterMap(page.Articles, func(a storage.Article, _ int) (string, bool) {
		return a.URL, a.URL != ""
	}))

	seen, err := s.loadSeen(ctx)
	if err != nil {
		debuglog.Warnf("sync reading seen urls: %v", err)
		return Retry
	}

	fresh := lo.Without(current, seen...)
	log := debuglog.WithFields(map[string]any{"fetched": len(current), "new": len(fresh)})
	if len(fresh) > 0 {
		if err := s.notifier.Notify(ctx, NewHeadlinesMessage); err != nil {
			log.Warnf("sync notify failed: %v", err)
			return Retry
		}
	}

	if err := s.saveSeen(ctx, current); err != nil {
		log.Warnf("sync saving seen urls: %v", err)
		return Retry
	}
	log.Infof("sync finished")
	return Success
}

func (s *Syncer) loadSeen(ctx context.Context) ([]string, error) {
	raw, err := s.meta.GetMeta(ctx, SeenURLsKey)
	if err != nil || raw == "" {
		return nil, err
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		// a corrupt value is replaced on the next save
		debuglog.Warnf("discarding unreadable seen urls: %v", err)
		return nil, nil
	}
	return urls, nil
}

func (s *Syncer) saveSeen(ctx context.Context, urls []string) error {
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encoding seen urls: %w", err)
	}
	return s.meta.SetMeta(ctx, SeenURLsKey, string(data))
}

// LogNotifier writes notifications to the debug log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, message string) error {
	debuglog.Infof("notification: %s", message)
	return nil
}

// WriterNotifier prints notifications as lines to W.
type WriterNotifier struct {
	W io.Writer
}

func (n WriterNotifier) Notify(_ context.Context, message string) error {
	_, err := fmt.Fprintln(n.W, message)
	return err
}
