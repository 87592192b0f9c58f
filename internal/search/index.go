// Package search keeps an offline full-text index of bookmarked articles.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/fwrd-news/internal/storage"
)

// Result is one matching bookmark.
type Result struct {
	Article storage.Article
	Score   float64
}

// Index is a bleve index keyed by article URL. It is safe for concurrent use.
type Index struct {
	idx bleve.Index
}

// Open opens the index at path, creating it when missing. An empty path
// keeps the index in memory.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
	}
	return &Index{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = standard.Name
	desc.Store = true

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	url := bleve.NewTextFieldMapping()
	url.Analyzer = standard.Name
	url.Store = true

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("description", desc)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("url", url)
	dm.AddFieldMappingsAt("source", storedOnly())
	dm.AddFieldMappingsAt("published_at", storedOnly())

	im.DefaultMapping = dm
	return im
}

func storedOnly() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	fm.Store = true
	fm.Index = false
	return fm
}

func document(a storage.Article) map[string]any {
	return map[string]any{
		"title":        a.Title,
		"description":  a.Description,
		"content":      a.Content,
		"url":          a.URL,
		"source":       a.SourceName(),
		"published_at": a.PublishedAt,
	}
}

// Index adds or replaces the document for article.
func (x *Index) Index(article storage.Article) error {
	if article.URL == "" {
		return storage.ErrEmptyURL
	}
	return x.idx.Index(article.URL, document(article))
}

// Remove deletes the document for url. Missing documents are ignored.
func (x *Index) Remove(url string) error {
	return x.idx.Delete(url)
}

// Reindex replaces the whole index with articles.
func (x *Index) Reindex(articles []storage.Article) error {
	keep := make(map[string]struct{}, len(articles))
	batch := x.idx.NewBatch()
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		keep[a.URL] = struct{}{}
		if err := batch.Index(a.URL, document(a)); err != nil {
			return err
		}
	}

	ids, err := x.allIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			batch.Delete(id)
		}
	}
	return x.idx.Batch(batch)
}

func (x *Index) allIDs() ([]string, error) {
	var ids []string
	const size = 1000
	for from := 0; ; from += size {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), size, from, false)
		res, err := x.idx.Search(req)
		if err != nil {
			return nil, err
		}
		for _, h := range res.Hits {
			ids = append(ids, h.ID)
		}
		if len(res.Hits) < size {
			return ids, nil
		}
	}
}

// Search returns articles matching any token of query as a term or prefix
// across title, description, content and url, boosted in that order. Hits
// matching more tokens score higher. Queries shorter than two characters
// return nothing.
func (x *Index) Search(query string, limit int) ([]Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	fields := []struct {
		name        string
		match, pref float64
	}{
		{"title", 4.0, 3.5},
		{"description", 2.0, 1.8},
		{"content", 1.0, 0.8},
		{"url", 0.5, 0.3},
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, f := range fields {
			m := bleve.NewMatchQuery(tok)
			m.SetField(f.name)
			m.SetBoost(f.match)
			p := bleve.NewPrefixQuery(tok)
			p.SetField(f.name)
			p.SetBoost(f.pref)
			qs = append(qs, m, p)
		}
	}
	if len(qs) == 0 {
		return []Result{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"title", "description", "url", "source", "published_at"}
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		a := storage.Article{URL: h.ID}
		if t, ok := h.Fields["title"].(string); ok {
			a.Title = t
		}
		if d, ok := h.Fields["description"].(string); ok {
			a.Description = d
		}
		if p, ok := h.Fields["published_at"].(string); ok {
			a.PublishedAt = p
		}
		if s, ok := h.Fields["source"].(string); ok && s != "" {
			a.Source = &storage.Source{Name: s}
		}
		out = append(out, Result{Article: a, Score: h.Score})
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (x *Index) DocCount() (int, error) {
	n, err := x.idx.DocCount()
	return int(n), err
}

func (x *Index) Close() error {
	return x.idx.Close()
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit. Single characters are dropped.
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}
