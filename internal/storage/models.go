package storage

import (
	"time"
)

// Source names the publisher of an article. Both fields are optional.
type Source struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Article is an immutable news item. URL is its identity; every other field
// is optional and empty when absent.
type Article struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Content     string  `json:"content,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Author      string  `json:"author,omitempty"`
	Source      *Source `json:"source,omitempty"`
}

// SourceName returns the source name or "" when there is no source.
func (a Article) SourceName() string {
	if a.Source == nil {
		return ""
	}
	return a.Source.Name
}

// Bookmark is the persisted projection of an Article, one per URL.
type Bookmark struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	PublishedAt string    `json:"published_at"`
	Author      string    `json:"author"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	SavedAt     time.Time `json:"saved_at"`
}

func newBookmark(a Article, savedAt time.Time) Bookmark {
	b := Bookmark{
		URL:         a.URL,
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt,
		Author:      a.Author,
		SavedAt:     savedAt,
	}
	if a.Source != nil {
		b.SourceID = a.Source.ID
		b.SourceName = a.Source.Name
	}
	return b
}

// Article rebuilds the domain value. A record without source fields yields a
// nil Source.
func (b Bookmark) Article() Article {
	a := Article{
		URL:         b.URL,
		Title:       b.Title,
		Description: b.Description,
		Content:     b.Content,
		ImageURL:    b.ImageURL,
		PublishedAt: b.PublishedAt,
		Author:      b.Author,
	}
	if b.SourceID != "" || b.SourceName != "" {
		a.Source = &Source{ID: b.SourceID, Name: b.SourceName}
	}
	return a
}
