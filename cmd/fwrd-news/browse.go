package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pders01/fwrd-news/internal/bookmarks"
	"github.com/pders01/fwrd-news/internal/media"
	"github.com/pders01/fwrd-news/internal/paging"
	"github.com/pders01/fwrd-news/internal/query"
)

const browseHelp = `Type a search query, or an empty line for headlines.
  :list      print the loaded articles
  :next      load the next page
  :more N    mark article N as seen (prefetches near the end)
  :retry     retry failed loads
  :refresh   reload from the current position
  :b N       toggle the bookmark on article N
  :o N       open article N in the browser
  :q         quit`

// syncWriter serialises lines from the input loop and the snapshot printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// browser holds the latest joined snapshot for the input loop.
type browser struct {
	out   io.Writer
	coord *query.Coordinator
	svc   *bookmarks.Service
	open  *media.Opener

	mu   sync.Mutex
	last bookmarks.Snapshot
}

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive headlines and search driven from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			coord := query.New(a.repo.Stream, a.cfg.Paging.Debounce, query.WithGrace(a.cfg.Paging.ShareGrace))
			defer coord.Close()

			b := &browser{
				out:   &syncWriter{w: cmd.OutOrStdout()},
				coord: coord,
				svc:   a.bookmarks,
				open:  media.NewOpener(a.cfg.Browser.Command),
			}
			fmt.Fprintln(b.out, browseHelp)

			snaps, stopSnaps := coord.Subscribe()
			defer stopSnaps()
			go b.follow(a.bookmarks.Join(ctx, snaps))
			go b.notify(ctx)

			return b.loop(ctx, opts.in)
		},
	}
}

// follow keeps the latest snapshot and reports load state transitions.
func (b *browser) follow(snaps <-chan bookmarks.Snapshot) {
	var prev bookmarks.Snapshot
	for snap := range snaps {
		b.mu.Lock()
		b.last = snap
		b.mu.Unlock()

		switch {
		case snap.Refresh.Status == paging.Loading && prev.Refresh.Status != paging.Loading:
			fmt.Fprintln(b.out, metaStyle.Render("loading..."))
		case len(snap.Articles) != len(prev.Articles):
			fmt.Fprintln(b.out, metaStyle.Render(fmt.Sprintf("%d articles loaded", len(snap.Articles))))
		}
		if snap.Refresh.Status == paging.Error || snap.Append.Status == paging.Error {
			printStatus(b.out, snap)
		}
		prev = snap
	}
}

func (b *browser) notify(ctx context.Context) {
	notes, cancel := b.svc.Notifications()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			if n.Kind != bookmarks.NoNotification {
				fmt.Fprintf(b.out, "%s: %s\n", n.Message, n.URL)
				b.svc.ClearNotification()
			}
		}
	}
}

func (b *browser) snapshot() bookmarks.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *browser) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ":") {
			b.coord.SetQuery(line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case ":q", ":quit":
			return nil
		case ":list":
			printArticles(b.out, b.snapshot().Articles)
		case ":next":
			b.coord.LoadNext()
		case ":retry":
			b.coord.Retry()
		case ":refresh":
			b.coord.Refresh()
		case ":more":
			if n, ok := b.index(fields, len(b.snapshot().Articles)); ok {
				b.coord.Access(n)
			}
		case ":b":
			snap := b.snapshot()
			n, ok := b.index(fields, len(snap.Articles))
			if !ok {
				continue
			}
			if _, err := b.svc.Toggle(ctx, snap.Articles[n].Article); err != nil {
				fmt.Fprintln(b.out, errStyle.Render(err.Error()))
			}
		case ":o":
			snap := b.snapshot()
			n, ok := b.index(fields, len(snap.Articles))
			if !ok {
				continue
			}
			if err := b.open.Open(snap.Articles[n].URL); err != nil {
				fmt.Fprintln(b.out, errStyle.Render(err.Error()))
			}
		default:
			fmt.Fprintln(b.out, browseHelp)
		}
	}
	return scanner.Err()
}

// index parses a 1-based article number into a position below count.
func (b *browser) index(fields []string, count int) (int, bool) {
	if len(fields) < 2 {
		fmt.Fprintln(b.out, "usage: "+fields[0]+" N")
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > count {
		fmt.Fprintf(b.out, "no article %q\n", fields[1])
		return 0, false
	}
	return n - 1, true
}
