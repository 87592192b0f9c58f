package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/pders01/fwrd-news/internal/bookmarks"
	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/storage"
)

// age renders a publication time relative to now. Unparseable values are
// shown as they came from the source.
func age(publishedAt string) string {
	if publishedAt == "" {
		return ""
	}
	t, err := dateparse.ParseAny(publishedAt)
	if err != nil {
		return publishedAt
	}
	return humanize.Time(t)
}

func byline(a storage.Article) string {
	parts := lo.Compact([]string{a.SourceName(), a.Author, age(a.PublishedAt)})
	return strings.Join(parts, " · ")
}

func printArticle(w io.Writer, n int, a bookmarks.Article) {
	mark := "   "
	if a.Bookmarked {
		mark = markStyle.Render("[*]")
	}
	title := a.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%s %3d. %s\n", mark, n, titleStyle.Render(title))
	if line := byline(a.Article); line != "" {
		fmt.Fprintf(w, "         %s\n", metaStyle.Render(line))
	}
	fmt.Fprintf(w, "         %s\n", a.URL)
}

func printArticles(w io.Writer, articles []bookmarks.Article) {
	for i, a := range articles {
		printArticle(w, i+1, a)
	}
}

func printStatus(w io.Writer, snap bookmarks.Snapshot) {
	for _, edge := range []struct {
		name  string
		state paging.LoadState
	}{
		{"refresh", snap.Refresh},
		{"append", snap.Append},
		{"prepend", snap.Prepend},
	} {
		if edge.state.Status == paging.Error {
			fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%s failed: %v (:retry to try again)", edge.name, edge.state.Err)))
		}
	}
	if snap.Append.EndReached {
		fmt.Fprintln(w, metaStyle.Render("end of results"))
	}
}

// urlSet indexes a bookmark list for annotation.
func urlSet(list []storage.Article) bookmarks.URLSet {
	return lo.SliceToMap(list, func(a storage.Article) (string, struct{}) {
		return a.URL, struct{}{}
	})
}
