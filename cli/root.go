package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"ytplan/internal/config"
	"ytplan/internal/output"
	"ytplan/internal/remind"
	"ytplan/internal/sheet"
	"ytplan/internal/tracker"
	"ytplan/internal/youtube"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	stdout, stderr io.Writer

	cfgFile   string
	envFile   string
	verbose   bool
	logFormat string
	colorMode string

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer

	// Collaborator factories, replaced in tests.
	openStore   func(ctx context.Context, cfg *config.Config, logger *slog.Logger, create bool) (sheet.Store, func() error, error)
	newSource   func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (youtube.PlaylistSource, error)
	newNotifier func(cfg *config.Config) remind.Notifier
	now         func() time.Time
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		openStore:   openStore,
		newSource:   newSource,
		newNotifier: newNotifier,
		now:         time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ytplan",
		Short: "Turn a YouTube playlist into a shared study schedule",
		Long: `ytplan distributes the videos of a playlist over weekdays, publishes the
schedule to a Google Sheet where every participant ticks off what they watched,
and emails the participants who fall behind.

Example usage:
  ytplan plan                  # Print the schedule built from the playlist
  ytplan publish               # Create or update the tracking sheet
  ytplan publish --dry-run     # Show the merged sheet without writing it
  ytplan remind                # Email participants who are behind
  ytplan status                # Show everyone's progress`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./ytplan.yaml or ~/.config/ytplan/ytplan.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to load (default is .env)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().StringVar(&a.colorMode, "color", "auto", "color output: auto, always, or never")

	root.AddCommand(
		newPlanCmd(a),
		newPublishCmd(a),
		newRemindCmd(a),
		newStatusCmd(a),
	)
	return root
}

// setup loads the configuration and sets up logging for cmd.
func (a *app) setup(cmd *cobra.Command) error {
	mode, err := output.ParseColorMode(a.colorMode)
	if err != nil {
		return err
	}
	a.printer = output.NewPrinterWithWriters(a.stdout, a.stderr, mode)

	overrides := map[string]any{}
	if f := cmd.Flags().Lookup("dry-run"); f != nil && f.Changed {
		overrides["dry_run"] = f.Value.String()
	}
	if a.logFormat != "" {
		overrides["log_format"] = a.logFormat
	}
	if a.verbose {
		overrides["log_level"] = "debug"
	}

	a.cfg, err = config.Load(config.Options{
		ConfigFile: a.cfgFile,
		EnvFile:    a.envFile,
		Overrides:  overrides,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.logger = newLogger(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
	a.logger.Debug("configuration loaded", "config", a.cfg.String())
	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// needs lists the collaborators a command uses.
type needs struct {
	// write opens the store for writing, creating it when missing.
	write    bool
	source   bool
	notifier bool
}

// tracker builds a Tracker with the configured collaborators. The returned
// function releases the store.
func (a *app) tracker(ctx context.Context, n needs) (*tracker.Tracker, func(), error) {
	store, closeStore, err := a.openStore(ctx, a.cfg, a.logger, n.write)
	if err != nil {
		return nil, nil, err
	}
	t := &tracker.Tracker{Config: a.cfg, Store: store, Logger: a.logger, Now: a.now}
	release := func() {
		if err := closeStore(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
	if n.source {
		if t.Source, err = a.newSource(ctx, a.cfg, a.logger); err != nil {
			release()
			return nil, nil, err
		}
	}
	if n.notifier && a.cfg.Sending() {
		t.Notifier = a.newNotifier(a.cfg)
	}
	return t, release, nil
}
