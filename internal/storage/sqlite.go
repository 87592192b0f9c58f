package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT,
	content      TEXT,
	image_url    TEXT,
	published_at TEXT,
	source_id    TEXT,
	source_name  TEXT,
	author       TEXT,
	saved_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const upsertBookmark = `
INSERT INTO bookmarks (url, title, description, content, image_url, published_at, source_id, source_name, author, saved_at)
VALUES (:url, :title, :description, :content, :image_url, :published_at, :source_id, :source_name, :author, :saved_at)
ON CONFLICT(url) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	content = excluded.content,
	image_url = excluded.image_url,
	published_at = excluded.published_at,
	source_id = excluded.source_id,
	source_name = excluded.source_name,
	author = excluded.author,
	saved_at = excluded.saved_at
`

type dbBookmark struct {
	URL         string         `db:"url"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Content     sql.NullString `db:"content"`
	ImageURL    sql.NullString `db:"image_url"`
	PublishedAt sql.NullString `db:"published_at"`
	SourceID    sql.NullString `db:"source_id"`
	SourceName  sql.NullString `db:"source_name"`
	Author      sql.NullString `db:"author"`
	SavedAt     string         `db:"saved_at"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toRow(b Bookmark) dbBookmark {
	return dbBookmark{
		URL:         b.URL,
		Title:       b.Title,
		Description: nullable(b.Description),
		Content:     nullable(b.Content),
		ImageURL:    nullable(b.ImageURL),
		PublishedAt: nullable(b.PublishedAt),
		SourceID:    nullable(b.SourceID),
		SourceName:  nullable(b.SourceName),
		Author:      nullable(b.Author),
		SavedAt:     b.SavedAt.Format(time.RFC3339Nano),
	}
}

func (r dbBookmark) bookmark() Bookmark {
	savedAt, _ := time.Parse(time.RFC3339Nano, r.SavedAt)
	return Bookmark{
		URL:         r.URL,
		Title:       r.Title,
		Description: r.Description.String,
		Content:     r.Content.String,
		ImageURL:    r.ImageURL.String,
		PublishedAt: r.PublishedAt.String,
		SourceID:    r.SourceID.String,
		SourceName:  r.SourceName.String,
		Author:      r.Author.String,
		SavedAt:     savedAt,
	}
}

// SQLiteStore keeps bookmarks in a single keyed table. The pool is limited to
// one connection, which serialises writes the same way bbolt does.
type SQLiteStore struct {
	db *sqlx.DB
	mu sync.Mutex
	watchers
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	s := &SQLiteStore{db: db, watchers: newWatchers()}
	if err := s.refresh(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	s.live.Close()
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, article Article) error {
	if article.URL == "" {
		return persistErr("upserting bookmark", ErrEmptyURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := toRow(newBookmark(article, time.Now().UTC()))
	if _, err := s.db.NamedExecContext(ctx, upsertBookmark, row); err != nil {
		return persistErr("upserting bookmark", err)
	}
	return s.refresh(ctx)
}

func (s *SQLiteStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE url = ?`, url); err != nil {
		return persistErr("deleting bookmark", err)
	}
	return s.refresh(ctx)
}

func (s *SQLiteStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookmarks WHERE url = ? LIMIT 1)`, url)
	return exists, persistErr("checking bookmark", err)
}

func (s *SQLiteStore) Toggle(ctx context.Context, article Article) (bool, error) {
	if article.URL == "" {
		return false, persistErr("toggling bookmark", ErrEmptyURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.toggleTx(ctx, article)
	if err != nil {
		return false, persistErr("toggling bookmark", err)
	}
	return added, s.refresh(ctx)
}

func (s *SQLiteStore) toggleTx(ctx context.Context, article Article) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookmarks WHERE url = ? LIMIT 1)`, article.URL); err != nil {
		return false, err
	}

	if exists {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE url = ?`, article.URL); err != nil {
			return false, err
		}
	} else {
		row := toRow(newBookmark(article, time.Now().UTC()))
		if _, err := tx.NamedExecContext(ctx, upsertBookmark, row); err != nil {
			return false, err
		}
	}
	return !exists, tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Article, error) {
	var rows []dbBookmark
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM bookmarks ORDER BY url`); err != nil {
		return nil, persistErr("listing bookmarks", err)
	}

	articles := lo.Map(rows, func(r dbBookmark, _ int) Article {
		return r.bookmark().Article()
	})
	SortBookmarks(articles)
	return articles, nil
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM meta WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, persistErr("reading metadata", err)
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return persistErr("writing metadata", err)
}

func (s *SQLiteStore) refresh(ctx context.Context) error {
	articles, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.publish(articles)
	return nil
}
