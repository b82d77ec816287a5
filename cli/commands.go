package main

import (
	"errors"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"ytplan/internal/apperr"
	"ytplan/internal/output"
	"ytplan/internal/tracker"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the schedule built from the playlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.PlaylistURL == "" {
				return apperr.Configf("playlist_url", "required")
			}
			if !a.cfg.StartDate.IsValid() {
				return apperr.Configf("start_date", "required (YYYY-MM-DD)")
			}
			ctx := cmd.Context()
			src, err := a.newSource(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			entries, err := (&tracker.Tracker{Config: a.cfg, Source: src, Logger: a.logger}).Plan(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.printer.Warning("playlist has no videos")
				return nil
			}
			return output.WriteEntries(a.stdout, entries)
		},
	}
}

func newPublishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Create or update the tracking sheet",
		Long: `Fetch the playlist, build the schedule and merge it into the tracking sheet.

Progress already recorded in the sheet is kept: rows are matched by video ID,
videos that left the playlist are kept as archived rows while they carry marks.

Examples:
  ytplan publish               # Write the merged sheet
  ytplan publish --dry-run     # Print the merged sheet, write nothing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidatePublish(); err != nil {
				return err
			}
			ctx := cmd.Context()
			t, release, err := a.tracker(ctx, needs{write: !a.cfg.DryRun, source: true})
			if err != nil {
				return err
			}
			defer release()

			res, err := t.Publish(ctx)
			if err != nil {
				return err
			}
			if res.DryRun {
				if err := output.WriteSheet(a.stdout, res.Table); err != nil {
					return err
				}
				a.printer.Info("dry run: %d added, %d updated, %d archived, nothing written",
					res.Diff.Added, res.Diff.Updated, res.Diff.Archived)
				return nil
			}
			a.printer.Success("published %d videos (%d added, %d updated, %d archived)",
				len(res.Entries), res.Diff.Added, res.Diff.Updated, res.Diff.Archived)
			if res.Shared != "" {
				a.printer.Info("shared with %s", res.Shared)
			}
			a.printer.Info("%s", res.URL)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "print the merged sheet without writing it")
	return cmd
}

func newRemindCmd(a *app) *cobra.Command {
	var today todayFlag
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Email participants who are behind schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateRemind(); err != nil {
				return err
			}
			ctx := cmd.Context()
			t, release, err := a.tracker(ctx, needs{notifier: true})
			if err != nil {
				return err
			}
			defer release()
			day, err := today.date(t)
			if err != nil {
				return err
			}

			res, err := t.Remind(ctx, day)
			if res != nil {
				for _, n := range res.Report.Notices {
					a.printer.Warning("%s is %d behind (%d of %d done)",
						n.Participant.Name, n.Deficit, n.Actual, n.Expected)
				}
			}
			if err != nil {
				return err
			}
			switch {
			case len(res.Report.Notices) == 0:
				a.printer.Success("everyone is on schedule as of %s", day)
			case res.Report.DryRun:
				a.printer.Info("dry run: %d reminders rendered, none sent", len(res.Report.Messages))
			default:
				a.printer.Success("sent %d reminders", res.Report.Sent)
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "log reminders instead of sending them")
	cmd.Flags().StringVar((*string)(&today), "today", "", "evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var today todayFlag
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show everyone's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, release, err := a.tracker(ctx, needs{})
			if err != nil {
				return err
			}
			defer release()
			day, err := today.date(t)
			if err != nil {
				return err
			}

			report, err := t.Status(ctx, day)
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				a.printer.Warning("%s", w)
			}
			if err := output.WriteSheet(a.stdout, report.Table); err != nil {
				return err
			}
			a.printer.Header("Progress as of " + day.String())
			return a.printer.WriteProgress(report.Participants)
		},
	}
	cmd.Flags().StringVar((*string)(&today), "today", "", "evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

// todayFlag is the --today flag. Empty means the current date in the
// configured time zone.
type todayFlag string

func (f todayFlag) date(t *tracker.Tracker) (civil.Date, error) {
	if f == "" {
		return t.Today(), nil
	}
	d, err := civil.ParseDate(string(f))
	if err != nil {
		return civil.Date{}, apperr.Configf("today", "invalid date %q (want YYYY-MM-DD)", string(f))
	}
	return d, nil
}

// isConfigError reports whether err should be followed by a usage hint.
func isConfigError(err error) bool {
	return errors.Is(err, apperr.ErrConfiguration)
}
