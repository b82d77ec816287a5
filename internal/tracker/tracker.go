// Package tracker wires the schedule builder, the sheet synchronizer and the
// reminder evaluator into the two runs the CLI exposes: publish and remind.
//
// A Tracker is used for a single run. It holds no state between calls other
// than its collaborators.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"ytplan/internal/config"
	"ytplan/internal/plan"
	"ytplan/internal/remind"
	"ytplan/internal/sheet"
	"ytplan/internal/youtube"
)

// Tracker runs publish and remind against the configured collaborators.
type Tracker struct {
	Config   *config.Config
	Source   youtube.PlaylistSource
	Store    sheet.Store
	Notifier remind.Notifier
	Logger   *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// PublishResult describes a publish run.
type PublishResult struct {
	RunID   string
	Entries []plan.ScheduleEntry
	Table   *sheet.Table
	Diff    sheet.Diff
	URL     string
	// Shared is the address access was granted to, if any.
	Shared string
	DryRun bool
}

// RemindResult describes a remind run.
type RemindResult struct {
	RunID    string
	Today    civil.Date
	Report   remind.Report
	Warnings []string
}

// ParticipantStatus is one participant's progress.
type ParticipantStatus struct {
	Name string
	Done int
	// Due is the number of items scheduled on or before today.
	Due     int
	Total   int
	Deficit int
}

// StatusReport is the progress of every participant in the store.
type StatusReport struct {
	Today        civil.Date
	Table        *sheet.Table
	Entries      []plan.ScheduleEntry
	Marks        remind.Marks
	Participants []ParticipantStatus
	Warnings     []string
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) runLogger(op string) (string, *slog.Logger) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return id, logger.With("run_id", id, "op", op)
}

// Plan fetches the playlist and builds the schedule without touching the store.
func (t *Tracker) Plan(ctx context.Context) ([]plan.ScheduleEntry, error) {
	_, logger := t.runLogger("plan")
	return t.build(ctx, logger)
}

func (t *Tracker) build(ctx context.Context, logger *slog.Logger) ([]plan.ScheduleEntry, error) {
	items, err := t.Source.ListPlaylist(ctx, t.Config.PlaylistURL)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	logger.Info("playlist fetched", "items", len(items))

	entries, err := plan.Build(items, t.Config.StartDate, t.Config.DailyCapacity)
	if err != nil {
		return nil, err
	}
	if last, ok := plan.LastDate(entries); ok {
		logger.Info("schedule built", "entries", len(entries), "start", t.Config.StartDate, "end", last)
	}
	return entries, nil
}

// Publish builds the schedule and merges it into the store. Nothing is
// written when fetching, reading or merging fails. A dry run stops after
// the merge and returns the table that would have been written.
func (t *Tracker) Publish(ctx context.Context) (*PublishResult, error) {
	runID, logger := t.runLogger("publish")
	logger.Info("publish started", "playlist", t.Config.PlaylistURL, "dry_run", t.Config.DryRun)

	entries, err := t.build(ctx, logger)
	if err != nil {
		return nil, err
	}

	existing, err := t.Store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if existing != nil {
		for _, note := range existing.Skipped {
			logger.Warn("note row is not kept", "note", note)
		}
	}

	merged, diff, err := sheet.Merge(entries, plan.ReviewDays(entries, t.Config.StartDate),
		t.Config.ParticipantNames(), existing)
	if err != nil {
		return nil, err
	}
	logger.Info("schedule merged",
		"added", diff.Added,
		"updated", diff.Updated,
		"unchanged", diff.Unchanged,
		"archived", diff.Archived,
		"dropped", diff.Dropped,
		"preserved_marks", diff.PreservedMarks,
	)

	result := &PublishResult{
		RunID:   runID,
		Entries: entries,
		Table:   merged,
		Diff:    diff,
		URL:     t.Store.URL(),
		DryRun:  t.Config.DryRun,
	}
	if t.Config.DryRun {
		logger.Info("dry run, store not written")
		return result, nil
	}

	if err := t.Store.Write(ctx, merged); err != nil {
		return nil, fmt.Errorf("write store: %w", err)
	}
	if f, ok := t.Store.(sheet.Formatter); ok {
		if err := f.Format(ctx, merged); err != nil {
			return nil, fmt.Errorf("format sheet: %w", err)
		}
	}
	if email := t.Config.ShareEmail; email != "" {
		if err := t.Store.Share(ctx, email); err != nil {
			return nil, fmt.Errorf("share sheet: %w", err)
		}
		result.Shared = email
	}
	logger.Info("publish finished", "url", result.URL)
	return result, nil
}

// Remind evaluates progress as of today and notifies participants who are
// behind schedule.
func (t *Tracker) Remind(ctx context.Context, today civil.Date) (*RemindResult, error) {
	runID, logger := t.runLogger("remind")
	logger.Info("remind started", "today", today, "dry_run", t.Config.DryRun, "email_enabled", t.Config.EmailEnabled)

	table, err := t.Store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	entries, marks, warnings, err := remind.FromTable(table)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, missingColumns(t.Config.ParticipantNames(), table.Participants)...)
	for _, w := range warnings {
		logger.Warn(w)
	}

	notices := remind.Evaluator{GraceDays: t.Config.GraceDays}.Evaluate(today, entries, marks, t.Config.Participants)
	logger.Info("progress evaluated", "entries", len(entries), "behind", len(notices))

	d := &remind.Dispatcher{
		Notifier: t.Notifier,
		DryRun:   t.Config.DryRun,
		Enabled:  t.Config.EmailEnabled,
		SheetURL: t.Store.URL(),
		Playlist: t.playlistName(),
		Logger:   logger,
	}
	report, err := d.Dispatch(ctx, notices)
	result := &RemindResult{RunID: runID, Today: today, Report: report, Warnings: warnings}
	if err != nil {
		return result, err
	}
	logger.Info("remind finished", "notices", len(notices), "sent", report.Sent)
	return result, nil
}

// Today returns the current date in the configured time zone.
func (t *Tracker) Today() civil.Date {
	return t.Config.Today(t.now())
}

// Status reports the progress of every participant column in the store.
func (t *Tracker) Status(ctx context.Context, today civil.Date) (*StatusReport, error) {
	table, err := t.Store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	entries, marks, warnings, err := remind.FromTable(table)
	if err != nil {
		return nil, err
	}

	due := len(plan.Due(entries, today.AddDays(-t.Config.GraceDays)))
	report := &StatusReport{Today: today, Table: table, Entries: entries, Marks: marks, Warnings: warnings}
	for _, name := range table.Participants {
		s := ParticipantStatus{Name: name, Due: due, Total: len(entries)}
		for _, e := range entries {
			if marks.Done(name, e.Item.ID) {
				s.Done++
			}
		}
		if s.Done < s.Due {
			s.Deficit = s.Due - s.Done
		}
		report.Participants = append(report.Participants, s)
	}
	return report, nil
}

func (t *Tracker) playlistName() string {
	switch {
	case t.Config.PlaylistName != "":
		return t.Config.PlaylistName
	case t.Config.SheetName != "":
		return t.Config.SheetName
	}
	return "Playlist"
}

func missingColumns(configured, columns []string) []string {
	var out []string
	for _, name := range configured {
		if !slices.Contains(columns, name) {
			out = append(out, fmt.Sprintf("%s has no column in the sheet, counting no completions", name))
		}
	}
	return out
}
