package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bookmarksBucket = []byte("bookmarks")
	metaBucket      = []byte("metadata")
)

// BoltStore keeps each bookmark as a JSON value under its URL. bbolt iterates
// keys in byte order, which gives the natural URL ordering for undated
// records.
type BoltStore struct {
	db *bolt.DB
	// mu orders write+publish pairs so subscribers never see an older list
	// after a newer one.
	mu sync.Mutex
	watchers
}

func NewStore(dbPath string, timeout time.Duration) (*BoltStore, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bookmarksBucket, metaBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	s := &BoltStore{db: db, watchers: newWatchers()}
	if err := s.refresh(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	s.live.Close()
	return s.db.Close()
}

func (s *BoltStore) Upsert(ctx context.Context, article Article) error {
	if article.URL == "" {
		return persistErr("upserting bookmark", ErrEmptyURL)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putBookmark(tx.Bucket(bookmarksBucket), article)
	})
	if err != nil {
		return persistErr("upserting bookmark", err)
	}
	return s.refresh()
}

func (s *BoltStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bookmarksBucket).Delete([]byte(url))
	})
	if err != nil {
		return persistErr("deleting bookmark", err)
	}
	return s.refresh()
}

func (s *BoltStore) Exists(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bookmarksBucket).Get([]byte(url)) != nil
		return nil
	})
	return found, persistErr("checking bookmark", err)
}

func (s *BoltStore) Toggle(ctx context.Context, article Article) (bool, error) {
	if article.URL == "" {
		return false, persistErr("toggling bookmark", ErrEmptyURL)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var added bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bookmarksBucket)
		key := []byte(article.URL)
		if b.Get(key) != nil {
			return b.Delete(key)
		}
		added = true
		return putBookmark(b, article)
	})
	if err != nil {
		return false, persistErr("toggling bookmark", err)
	}
	return added, s.refresh()
}

func (s *BoltStore) List(ctx context.Context) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readAll()
}

func (s *BoltStore) readAll() ([]Article, error) {
	articles := []Article{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bookmarksBucket).ForEach(func(_ []byte, v []byte) error {
			var b Bookmark
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			articles = append(articles, b.Article())
			return nil
		})
	})
	if err != nil {
		return nil, persistErr("listing bookmarks", err)
	}
	SortBookmarks(articles)
	return articles, nil
}

func (s *BoltStore) GetMeta(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		value = string(tx.Bucket(metaBucket).Get([]byte(key)))
		return nil
	})
	return value, persistErr("reading metadata", err)
}

func (s *BoltStore) SetMeta(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), []byte(value))
	})
	return persistErr("writing metadata", err)
}

// refresh republishes the ordered list after a write.
func (s *BoltStore) refresh() error {
	articles, err := s.readAll()
	if err != nil {
		return err
	}
	s.publish(articles)
	return nil
}

func putBookmark(b *bolt.Bucket, article Article) error {
	data, err := json.Marshal(newBookmark(article, time.Now().UTC()))
	if err != nil {
		return err
	}
	return b.Put([]byte(article.URL), data)
}
