package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwrd-news/internal/config"
)

func setupTestStore(t *testing.T, driver string) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(driver, dbPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func forEachDriver(t *testing.T, fn func(t *testing.T, store Store)) {
	for _, driver := range []string{config.DriverBolt, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			fn(t, setupTestStore(t, driver))
		})
	}
}

func sampleArticle(url string) Article {
	return Article{
		URL:         url,
		Title:       "Title " + url,
		Description: "desc",
		Content:     "body",
		ImageURL:    "https://img.example.com/a.png",
		PublishedAt: "2024-05-01T10:00:00Z",
		Author:      "Ada",
		Source:      &Source{ID: "src", Name: "Source"},
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mongo", filepath.Join(t.TempDir(), "x.db"), time.Second)
	assert.Error(t, err)
}

func TestStore_UpsertExistsDelete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := Article{URL: "https://x/1", Title: "T"}

		ok, err := store.Exists(ctx, a.URL)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Upsert(ctx, a))
		ok, err = store.Exists(ctx, a.URL)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.Delete(ctx, a.URL))
		ok, err = store.Exists(ctx, a.URL)
		require.NoError(t, err)
		assert.False(t, ok)

		// deleting an absent url is not an error
		assert.NoError(t, store.Delete(ctx, "https://x/absent"))
	})
}

func TestStore_RoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		full := sampleArticle("https://example.com/full")
		sparse := Article{URL: "https://example.com/sparse", Title: "only title"}

		require.NoError(t, store.Upsert(ctx, full))
		require.NoError(t, store.Upsert(ctx, sparse))

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)

		assert.Equal(t, full, list[0])
		assert.Equal(t, sparse, list[1])
		assert.Nil(t, list[1].Source)
	})
}

func TestStore_UpsertReplaces(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := sampleArticle("https://example.com/a")
		require.NoError(t, store.Upsert(ctx, a))

		a.Title = "Updated"
		require.NoError(t, store.Upsert(ctx, a))

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Updated", list[0].Title)
	})
}

func TestStore_Toggle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := Article{URL: "https://x/1", Title: "T"}

		added, err := store.Toggle(ctx, a)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = store.Toggle(ctx, a)
		require.NoError(t, err)
		assert.False(t, added)

		ok, err := store.Exists(ctx, a.URL)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_ConcurrentToggleKeepsOneRecord(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := Article{URL: "https://x/1", Title: "T"}

		var wg sync.WaitGroup
		for i := 0; i < 9; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Toggle(ctx, a)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		list, err := store.List(ctx)
		require.NoError(t, err)
		// odd number of toggles leaves exactly one record
		require.Len(t, list, 1)
		assert.Equal(t, a.URL, list[0].URL)
	})
}

func TestStore_EmptyURL(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		err := store.Upsert(ctx, Article{Title: "no url"})
		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.ErrorIs(t, err, ErrEmptyURL)

		_, err = store.Toggle(ctx, Article{})
		assert.ErrorIs(t, err, ErrEmptyURL)

		// store remains usable
		require.NoError(t, store.Upsert(ctx, Article{URL: "https://x/ok", Title: "ok"}))
	})
}

func TestStore_ListOrdering(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		articles := []Article{
			{URL: "https://x/undated-b", Title: "b"},
			{URL: "https://x/old", Title: "old", PublishedAt: "2023-01-01T00:00:00Z"},
			{URL: "https://x/garbage", Title: "g", PublishedAt: "not a date"},
			{URL: "https://x/new", Title: "new", PublishedAt: "2024-06-01T12:00:00Z"},
			{URL: "https://x/undated-a", Title: "a"},
			{URL: "https://x/mid", Title: "mid", PublishedAt: "March 3, 2024"},
		}
		for _, a := range articles {
			require.NoError(t, store.Upsert(ctx, a))
		}

		list, err := store.List(ctx)
		require.NoError(t, err)

		var urls []string
		for _, a := range list {
			urls = append(urls, a.URL)
		}
		assert.Equal(t, []string{
			"https://x/new",
			"https://x/mid",
			"https://x/old",
			"https://x/garbage",
			"https://x/undated-a",
			"https://x/undated-b",
		}, urls)
	})
}

func TestStore_Subscribe(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		ch, cancel := store.Subscribe()
		defer cancel()

		first := receive(t, ch)
		assert.Empty(t, first)

		require.NoError(t, store.Upsert(ctx, Article{URL: "https://x/1", Title: "T"}))
		got := waitFor(t, ch, func(list []Article) bool { return len(list) == 1 })
		assert.Equal(t, "https://x/1", got[0].URL)

		require.NoError(t, store.Delete(ctx, "https://x/1"))
		waitFor(t, ch, func(list []Article) bool { return len(list) == 0 })
	})
}

func TestStore_Meta(t *testing.T) {
	forEachDriver(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		v, err := store.GetMeta(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, v)

		require.NoError(t, store.SetMeta(ctx, "sync.seen_urls", `["a"]`))
		require.NoError(t, store.SetMeta(ctx, "sync.seen_urls", `["a","b"]`))

		v, err = store.GetMeta(ctx, "sync.seen_urls")
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, v)
	})
}

func TestStore_Persistence(t *testing.T) {
	for _, driver := range []string{config.DriverBolt, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			dbPath := filepath.Join(t.TempDir(), "persist.db")

			store, err := Open(driver, dbPath, time.Second)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Upsert(ctx, Article{URL: fmt.Sprintf("https://x/%d", i), Title: "T"}))
			}
			require.NoError(t, store.Close())

			reopened, err := Open(driver, dbPath, time.Second)
			require.NoError(t, err)
			defer reopened.Close()

			list, err := reopened.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 3)
		})
	}
}

func TestSortBookmarks_TiesByURL(t *testing.T) {
	articles := []Article{
		{URL: "https://x/b", PublishedAt: "2024-01-01T00:00:00Z"},
		{URL: "https://x/a", PublishedAt: "2024-01-01T00:00:00Z"},
	}
	SortBookmarks(articles)
	assert.Equal(t, "https://x/a", articles[0].URL)
}

func TestSortBookmarks_ZonelessDatesAreUTC(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+10", 10*60*60)
	t.Cleanup(func() { time.Local = local })

	articles := []Article{
		{URL: "https://x/zoned", PublishedAt: "2024-01-01T05:00:00Z"},
		{URL: "https://x/zoneless", PublishedAt: "2024-01-01 10:00:00"},
	}
	SortBookmarks(articles)
	assert.Equal(t, "https://x/zoneless", articles[0].URL)
	assert.Equal(t, "https://x/zoned", articles[1].URL)
}

func receive(t *testing.T, ch <-chan []Article) []Article {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bookmark list")
		return nil
	}
}

func waitFor(t *testing.T, ch <-chan []Article, cond func([]Article) bool) []Article {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if cond(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching bookmark list")
			return nil
		}
	}
}
