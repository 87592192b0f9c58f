// Package bookmarks joins the persisted bookmark set with live article
// streams and owns bookmark toggling.
package bookmarks

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/storage"
	"github.com/pders01/fwrd-news/internal/stream"
)

// DefaultShareGrace keeps the store subscription alive after the last
// observer leaves, so quick resubscribes reuse it.
const DefaultShareGrace = 5 * time.Second

// URLSet is the set of bookmarked article URLs.
type URLSet map[string]struct{}

func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

func newURLSet(articles []storage.Article) URLSet {
	return lo.SliceToMap(articles, func(a storage.Article) (string, struct{}) {
		return a.URL, struct{}{}
	})
}

type NotificationKind int

const (
	NoNotification NotificationKind = iota
	Added
	Removed
)

// Notification reports the outcome of the last toggle. The zero value means
// there is nothing to show.
type Notification struct {
	Kind    NotificationKind
	Message string
	URL     string
}

// Indexer mirrors bookmark changes into a search index.
type Indexer interface {
	Index(article storage.Article) error
	Remove(url string) error
}

// Repository is the part of the core API the service needs. It is satisfied
// by *repository.Repository.
type Repository interface {
	BookmarkArticle(ctx context.Context, article storage.Article) error
	RemoveBookmark(ctx context.Context, url string) error
	IsBookmarked(ctx context.Context, url string) (bool, error)
	Bookmarks(ctx context.Context) ([]storage.Article, error)
	ToggleBookmark(ctx context.Context, article storage.Article) (bool, error)
	Subscribe() (<-chan []storage.Article, func())
}

// Service is the bookmark side of the feed. It is safe for concurrent use.
type Service struct {
	repo    Repository
	list    *stream.Shared[[]storage.Article]
	notes   *stream.Subject[Notification]
	indexer Indexer
}

type Option func(*Service)

// WithIndexer keeps idx in step with every successful toggle.
func WithIndexer(idx Indexer) Option {
	return func(s *Service) { s.indexer = idx }
}

func NewService(repo Repository, grace time.Duration, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		list:  stream.NewShared(grace, repo.Subscribe),
		notes: stream.NewSubjectWith(Notification{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bookmarks follows the bookmark list, newest publication first.
func (s *Service) Bookmarks() (<-chan []storage.Article, func()) {
	return s.list.Subscribe()
}

// URLs follows the set of bookmarked URLs.
func (s *Service) URLs() (<-chan URLSet, func()) {
	ch, cancel := s.list.Subscribe()
	return stream.Map(ch, cancel, newURLSet)
}

// Toggle flips the bookmark state of article and reports whether it is
// bookmarked afterwards. The read and the write happen in one store
// transaction.
func (s *Service) Toggle(ctx context.Context, article storage.Article) (bool, error) {
	added, err := s.repo.ToggleBookmark(ctx, article)
	if err != nil {
		return false, err
	}

	if added {
		s.notes.Publish(Notification{Kind: Added, Message: "Bookmarked", URL: article.URL})
	} else {
		s.notes.Publish(Notification{Kind: Removed, Message: "Removed from bookmarks", URL: article.URL})
	}
	s.syncIndex(article, added)
	return added, nil
}

// Add bookmarks article, replacing any earlier record for its URL.
func (s *Service) Add(ctx context.Context, article storage.Article) error {
	if err := s.repo.BookmarkArticle(ctx, article); err != nil {
		return err
	}
	s.syncIndex(article, true)
	return nil
}

// Remove deletes the bookmark for url. Removing an absent bookmark is a
// no-op.
func (s *Service) Remove(ctx context.Context, url string) error {
	if err := s.repo.RemoveBookmark(ctx, url); err != nil {
		return err
	}
	s.syncIndex(storage.Article{URL: url}, false)
	return nil
}

func (s *Service) IsBookmarked(ctx context.Context, url string) (bool, error) {
	return s.repo.IsBookmarked(ctx, url)
}

// List returns the current bookmark list once.
func (s *Service) List(ctx context.Context) ([]storage.Article, error) {
	return s.repo.Bookmarks(ctx)
}

func (s *Service) syncIndex(article storage.Article, present bool) {
	if s.indexer == nil {
		return
	}
	var err error
	if present {
		err = s.indexer.Index(article)
	} else {
		err = s.indexer.Remove(article.URL)
	}
	if err != nil {
		debuglog.WithFields(map[string]any{"url": article.URL}).Warnf("updating bookmark index: %v", err)
	}
}

// Notifications replays the latest toggle outcome.
func (s *Service) Notifications() (<-chan Notification, func()) {
	return s.notes.Subscribe()
}

// ClearNotification resets the notification once it has been shown.
func (s *Service) ClearNotification() {
	s.notes.Publish(Notification{})
}

// Connected reports whether the shared store subscription is live.
func (s *Service) Connected() bool {
	return s.list.Connected()
}

// Article is an article annotated with its bookmark state.
type Article struct {
	storage.Article
	Bookmarked bool
}

// Snapshot is a paging snapshot with bookmark annotations.
type Snapshot struct {
	Articles []Article
	Refresh  paging.LoadState
	Append   paging.LoadState
	Prepend  paging.LoadState
}

// Annotate marks each article whose URL is in urls.
func Annotate(articles []storage.Article, urls URLSet) []Article {
	return lo.Map(articles, func(a storage.Article, _ int) Article {
		return Article{Article: a, Bookmarked: urls.Has(a.URL)}
	})
}

// Join combines the latest paging snapshot with the latest bookmark set. It
// emits once both have produced a value and again whenever either changes.
// The returned channel closes when ctx is done or snapshots closes.
func (s *Service) Join(ctx context.Context, snapshots <-chan paging.Snapshot) <-chan Snapshot {
	out := stream.NewSubject[Snapshot]()
	// out.Close below ends this subscription, so its cancel is not needed.
	ch, _ := out.Subscribe()

	urls, cancelURLs := s.URLs()
	go func() {
		defer out.Close()
		defer cancelURLs()

		var (
			snap    paging.Snapshot
			set     URLSet
			haveSnp bool
			haveSet bool
		)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-snapshots:
				if !ok {
					return
				}
				snap, haveSnp = v, true
			case v, ok := <-urls:
				if !ok {
					return
				}
				set, haveSet = v, true
			}
			if haveSnp && haveSet {
				out.Publish(Snapshot{
					Articles: Annotate(snap.Articles, set),
					Refresh:  snap.Refresh,
					Append:   snap.Append,
					Prepend:  snap.Prepend,
				})
			}
		}
	}()

	return ch
}
