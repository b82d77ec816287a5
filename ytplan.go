package ytplan

import (
	"context"

	"cloud.google.com/go/civil"

	"ytplan/internal/plan"
	"ytplan/internal/remind"
	"ytplan/internal/youtube"
)

// Core types.
type (
	Item          = plan.Item
	ScheduleEntry = plan.ScheduleEntry
	Participant   = plan.Participant
	Notice        = remind.Notice
	MarkKey       = remind.MarkKey
	Marks         = remind.Marks
)

// ListPlaylist fetches the videos of a playlist with yt-dlp. Private and
// deleted videos are skipped.
func ListPlaylist(ctx context.Context, ref string) ([]Item, error) {
	return youtube.NewYtdlpSource().ListPlaylist(ctx, ref)
}

// BuildSchedule assigns items to weekdays starting at start, at most capacity
// per day.
func BuildSchedule(items []Item, start civil.Date, capacity int) ([]ScheduleEntry, error) {
	return plan.Build(items, start, capacity)
}

// Evaluate returns a notice for every participant who completed fewer items
// than were scheduled on or before today.
func Evaluate(today civil.Date, entries []ScheduleEntry, marks Marks, participants []Participant) []Notice {
	return remind.Evaluate(today, entries, marks, participants)
}
