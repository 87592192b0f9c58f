package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/fwrd-news/internal/bookmarks"
	"github.com/pders01/fwrd-news/internal/paging"
)

func newHeadlinesCmd(opts *rootOptions) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "headlines",
		Short: "Print top headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPages(cmd, opts, "", pages)
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return fmt.Errorf("empty search query")
			}
			return runPages(cmd, opts, q, pages)
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	return cmd
}

// runPages refreshes a fresh engine for query, appends until pages are loaded
// or the stream ends, and prints the annotated result.
func runPages(cmd *cobra.Command, opts *rootOptions, query string, pages int) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	engine := a.repo.Stream(query)
	defer engine.Close()

	engine.Refresh()
	snap, err := settle(ctx, engine)
	if err != nil {
		return err
	}
	if snap.Refresh.Status == paging.Error {
		return snap.Refresh.Err
	}

	for i := 1; i < pages && !snap.Append.EndReached; i++ {
		engine.LoadNext()
		if snap, err = settle(ctx, engine); err != nil {
			return err
		}
		if snap.Append.Status == paging.Error {
			break
		}
	}

	list, err := a.bookmarks.List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(snap.Articles) == 0 {
		fmt.Fprintln(out, "No articles.")
	}
	annotated := bookmarks.Snapshot{
		Articles: bookmarks.Annotate(snap.Articles, urlSet(list)),
		Refresh:  snap.Refresh,
		Append:   snap.Append,
		Prepend:  snap.Prepend,
	}
	printArticles(out, annotated.Articles)
	printStatus(out, annotated)
	return nil
}

// settle waits until neither the refresh nor the append edge is loading.
func settle(ctx context.Context, engine *paging.Engine) (paging.Snapshot, error) {
	ch, cancel := engine.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return paging.Snapshot{}, ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return engine.Snapshot(), nil
			}
			if snap.Refresh.Status != paging.Loading && snap.Append.Status != paging.Loading {
				return snap, nil
			}
		}
	}
}
