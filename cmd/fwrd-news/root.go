package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pders01/fwrd-news/internal/config"
	"github.com/pders01/fwrd-news/internal/debuglog"
)

// skipConfig marks commands that run without loading the config file.
const skipConfig = "skip-config"

type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	quiet      bool

	in  io.Reader
	cfg *config.Config
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{in: in}

	cmd := &cobra.Command{
		Use:           "fwrd-news",
		Short:         "Headlines, search and bookmarks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return opts.load()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return debuglog.Close()
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.dbPath, "db", "", "Path to database file (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, off (overrides config)")
	flags.BoolVar(&opts.quiet, "quiet", false, "Skip startup banner")

	cmd.AddCommand(
		newHeadlinesCmd(opts),
		newSearchCmd(opts),
		newBrowseCmd(opts),
		newBookmarksCmd(opts),
		newSyncCmd(opts),
		newDaemonCmd(opts),
		newGenerateConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// open builds the application from the loaded config and prints the banner
// unless --quiet was given.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	if !o.quiet {
		showBanner(cmd.OutOrStdout())
	}
	return openApp(o.cfg)
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "generate-config [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.GenerateDefaultConfig(path); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fwrd-news %s\n", Version)
			fmt.Fprintln(out, "News headlines and bookmarks")
			fmt.Fprintln(out, "github.com/pders01/fwrd-news")
		},
	}
}
