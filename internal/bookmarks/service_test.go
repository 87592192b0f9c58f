package bookmarks

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/repository"
	"github.com/pders01/fwrd-news/internal/storage"
)

func newTestService(t *testing.T, grace time.Duration, opts ...Option) (*Service, storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "bookmarks.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repo := repository.New(nil, store, paging.Config{})
	return NewService(repo, grace, opts...), store
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (f *fakeIndexer) Index(a storage.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, a.URL)
	return nil
}

func (f *fakeIndexer) Remove(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return errors.New("index unavailable")
}

func latest[T any](t *testing.T, ch <-chan T, cond func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed")
			if cond(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for value")
			var zero T
			return zero
		}
	}
}

func TestService_ToggleIsIdempotentPair(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()
	a := storage.Article{URL: "https://x/1", Title: "One"}

	notes, cancel := svc.Notifications()
	defer cancel()
	first := latest(t, notes, func(Notification) bool { return true })
	assert.Equal(t, NoNotification, first.Kind)

	added, err := svc.Toggle(ctx, a)
	require.NoError(t, err)
	assert.True(t, added)
	n := latest(t, notes, func(n Notification) bool { return n.Kind != NoNotification })
	assert.Equal(t, Added, n.Kind)
	assert.Equal(t, "Bookmarked", n.Message)
	assert.Equal(t, a.URL, n.URL)

	svc.ClearNotification()
	latest(t, notes, func(n Notification) bool { return n.Kind == NoNotification })

	added, err = svc.Toggle(ctx, a)
	require.NoError(t, err)
	assert.False(t, added)
	n = latest(t, notes, func(n Notification) bool { return n.Kind != NoNotification })
	assert.Equal(t, Removed, n.Kind)
	assert.Equal(t, "Removed from bookmarks", n.Message)

	ok, err := svc.IsBookmarked(ctx, a.URL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ToggleFailureLeavesNotification(t *testing.T) {
	svc, _ := newTestService(t, 0)

	_, err := svc.Toggle(context.Background(), storage.Article{Title: "no url"})
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)

	notes, cancel := svc.Notifications()
	defer cancel()
	n := latest(t, notes, func(Notification) bool { return true })
	assert.Equal(t, NoNotification, n.Kind)
}

func TestService_BookmarkScenario(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	list, cancel := svc.Bookmarks()
	defer cancel()

	require.NoError(t, svc.Add(ctx, storage.Article{URL: "https://x/1", Title: "One"}))
	got := latest(t, list, func(l []storage.Article) bool { return len(l) == 1 })
	assert.Equal(t, "https://x/1", got[0].URL)

	stored, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	require.NoError(t, svc.Remove(ctx, "https://x/1"))
	latest(t, list, func(l []storage.Article) bool { return len(l) == 0 })
}

func TestService_URLs(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	urls, cancel := svc.URLs()
	defer cancel()
	empty := latest(t, urls, func(URLSet) bool { return true })
	assert.Empty(t, empty)

	_, err := svc.Toggle(ctx, storage.Article{URL: "https://x/2", Title: "Two"})
	require.NoError(t, err)
	set := latest(t, urls, func(s URLSet) bool { return len(s) == 1 })
	assert.True(t, set.Has("https://x/2"))
	assert.False(t, set.Has("https://x/3"))
}

func TestService_SharedSubscriptionGrace(t *testing.T) {
	svc, _ := newTestService(t, 60*time.Millisecond)

	assert.False(t, svc.Connected())
	_, cancel := svc.Bookmarks()
	assert.True(t, svc.Connected())
	cancel()

	// still connected inside the grace period; a new observer reuses it
	assert.True(t, svc.Connected())
	_, cancel = svc.URLs()
	time.Sleep(100 * time.Millisecond)
	assert.True(t, svc.Connected())
	cancel()

	require.Eventually(t, func() bool { return !svc.Connected() }, time.Second, 5*time.Millisecond)
}

func TestService_IndexerHook(t *testing.T) {
	idx := &fakeIndexer{}
	svc, _ := newTestService(t, 0, WithIndexer(idx))
	ctx := context.Background()
	a := storage.Article{URL: "https://x/idx", Title: "Indexed"}

	_, err := svc.Toggle(ctx, a)
	require.NoError(t, err)
	// index failures are logged, not returned
	_, err = svc.Toggle(ctx, a)
	require.NoError(t, err)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Equal(t, []string{"https://x/idx"}, idx.indexed)
	assert.Equal(t, []string{"https://x/idx"}, idx.removed)
}

func TestAnnotate(t *testing.T) {
	articles := []storage.Article{{URL: "https://x/a"}, {URL: "https://x/b"}}
	out := Annotate(articles, URLSet{"https://x/b": {}})

	require.Len(t, out, 2)
	assert.False(t, out[0].Bookmarked)
	assert.True(t, out[1].Bookmarked)
	assert.Equal(t, "https://x/b", out[1].URL)
}

func TestService_Join(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps := make(chan paging.Snapshot, 1)
	joined := svc.Join(ctx, snaps)

	a := storage.Article{URL: "https://x/j", Title: "Joined"}
	snaps <- paging.Snapshot{Articles: []storage.Article{a}, Append: paging.LoadState{Status: paging.Loading}}

	got := latest(t, joined, func(s Snapshot) bool { return len(s.Articles) == 1 })
	assert.False(t, got.Articles[0].Bookmarked)
	assert.Equal(t, paging.Loading, got.Append.Status)

	_, err := svc.Toggle(ctx, a)
	require.NoError(t, err)
	got = latest(t, joined, func(s Snapshot) bool { return len(s.Articles) == 1 && s.Articles[0].Bookmarked })
	assert.Equal(t, "Joined", got.Articles[0].Title)

	close(snaps)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-joined:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestService_JoinClosesOnContextDone(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	snaps := make(chan paging.Snapshot)
	joined := svc.Join(ctx, snaps)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-joined:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !svc.Connected() }, time.Second, 5*time.Millisecond)
}

var _ Repository = (*repository.Repository)(nil)

// recordingRepo notes which repository writes the service issues.
type recordingRepo struct {
	*repository.Repository
	mu    sync.Mutex
	calls []string
}

func (r *recordingRepo) note(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recordingRepo) BookmarkArticle(ctx context.Context, a storage.Article) error {
	r.note("bookmark")
	return r.Repository.BookmarkArticle(ctx, a)
}

func (r *recordingRepo) RemoveBookmark(ctx context.Context, url string) error {
	r.note("remove")
	return r.Repository.RemoveBookmark(ctx, url)
}

func (r *recordingRepo) ToggleBookmark(ctx context.Context, a storage.Article) (bool, error) {
	r.note("toggle")
	return r.Repository.ToggleBookmark(ctx, a)
}

func TestService_WritesGoThroughRepository(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "bookmarks.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := &recordingRepo{Repository: repository.New(nil, store, paging.Config{})}
	svc := NewService(repo, 0)
	ctx := context.Background()
	a := storage.Article{URL: "https://x/r", Title: "Routed"}

	require.NoError(t, svc.Add(ctx, a))
	ok, err := store.Exists(ctx, a.URL)
	require.NoError(t, err)
	assert.True(t, ok)

	added, err := svc.Toggle(ctx, a)
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, svc.Remove(ctx, a.URL))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"bookmark", "toggle", "remove"}, repo.calls)
}
