package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/syncer"
)

func (a *app) newSyncer(notifier syncer.Notifier) *syncer.Syncer {
	return syncer.New(a.fetcher, a.store, notifier,
		syncer.WithPageSize(a.cfg.Paging.PageSize),
		syncer.WithTimeout(a.cfg.Sync.Timeout),
	)
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Check once for new headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			result := a.newSyncer(syncer.WriterNotifier{W: out}).Run(cmd.Context())
			fmt.Fprintf(out, "sync: %s\n", result)
			if result == syncer.Retry {
				return fmt.Errorf("sync did not complete, try again later")
			}
			return nil
		},
	}
}

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if schedule == "" {
				schedule = opts.cfg.Sync.Schedule
			}
			if opts.cfg.Log.File == "" {
				level := debuglog.ParseLogLevel(opts.cfg.Log.Level)
				if level == debuglog.LevelOff {
					level = debuglog.LevelInfo
				}
				debuglog.SetOutput(level, cmd.ErrOrStderr())
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := syncer.ForSyncer(schedule, a.newSyncer(syncer.LogNotifier{}))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched.Start()
			defer sched.Stop()
			debuglog.Infof("sync scheduled %q, next run at %s", schedule, sched.Next().Format("2006-01-02 15:04:05"))

			<-ctx.Done()
			debuglog.Infof("daemon stopping")
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron spec overriding sync.schedule")
	return cmd
}
