package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/fwrd-news/internal/bookmarks"
	"github.com/pders01/fwrd-news/internal/storage"
	"github.com/pders01/fwrd-news/internal/validation"
)

func newBookmarksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookmarks",
		Aliases: []string{"bm"},
		Short:   "Manage saved articles",
	}
	cmd.AddCommand(
		newBookmarksListCmd(opts),
		newBookmarksAddCmd(opts),
		newBookmarksRemoveCmd(opts),
		newBookmarksFindCmd(opts),
		newBookmarksReindexCmd(opts),
	)
	return cmd
}

func newBookmarksListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest publication first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.bookmarks.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No bookmarks.")
				return nil
			}
			printArticles(out, bookmarks.Annotate(list, urlSet(list)))
			return nil
		},
	}
}

func newBookmarksAddCmd(opts *rootOptions) *cobra.Command {
	var article storage.Article
	var source string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Bookmark an article by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := validation.NewURLValidator().ArticleURL(args[0])
			if err != nil {
				return fmt.Errorf("invalid article URL: %w", err)
			}
			article.URL = u
			if source != "" {
				article.Source = &storage.Source{Name: source}
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.bookmarks.Add(cmd.Context(), article); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s\n", u)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&article.Title, "title", "", "Article title")
	flags.StringVar(&article.Description, "description", "", "Article description")
	flags.StringVar(&article.PublishedAt, "published", "", "Publication date")
	flags.StringVar(&article.Author, "author", "", "Article author")
	flags.StringVar(&source, "source", "", "Source name")
	return cmd
}

func newBookmarksRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a bookmark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			u := strings.TrimSpace(args[0])
			ok, err := a.bookmarks.IsBookmarked(cmd.Context(), u)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not bookmarked: %s", u)
			}
			if err := a.bookmarks.Remove(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", u)
			return nil
		},
	}
}

func newBookmarksFindCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Full-text search over bookmarks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.index == nil {
				return fmt.Errorf("bookmark search is unavailable")
			}
			results, err := a.index.Search(strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("searching bookmarks: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for i, r := range results {
				printArticle(out, i+1, bookmarks.Article{Article: r.Article, Bookmarked: true})
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of matches")
	return cmd
}

func newBookmarksReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the bookmark search index from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.index == nil {
				return fmt.Errorf("bookmark search is unavailable")
			}
			list, err := a.bookmarks.List(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.index.Reindex(list); err != nil {
				return fmt.Errorf("reindexing bookmarks: %w", err)
			}
			n, _ := a.index.DocCount()
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d bookmarks\n", n)
			return nil
		},
	}
}
