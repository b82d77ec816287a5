// Package plan assigns playlist items to study days.
package plan

import (
	"time"

	"cloud.google.com/go/civil"

	"ytplan/internal/apperr"
)

// Item is a unit of content to track, usually one video.
type Item struct {
	// Title is the video title.
	Title string `json:"title"`

	// ID is the stable identifier (the YouTube video ID).
	ID string `json:"id"`

	// URL is the watch link.
	URL string `json:"url"`
}

// ScheduleEntry binds an Item to the day it should be watched.
type ScheduleEntry struct {
	Item Item       `json:"item"`
	Date civil.Date `json:"date"`

	// Day is the 1-based study day number. Weekends are not counted.
	Day int `json:"day"`

	// Position is the item's index in the input order.
	Position int `json:"position"`
}

// Participant is someone following the schedule.
type Participant struct {
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email,omitempty" mapstructure:"email"`
}

// IsWeekend reports whether d is a Saturday or Sunday.
func IsWeekend(d civil.Date) bool {
	switch d.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// Build distributes items over weekdays starting at start, placing at most
// capacity items on each day. Weekends receive no items. The result is fully
// determined by its inputs.
func Build(items []Item, start civil.Date, capacity int) ([]ScheduleEntry, error) {
	if capacity <= 0 {
		return nil, apperr.Configf("daily_capacity", "must be at least 1, got %d", capacity)
	}
	if !start.IsValid() {
		return nil, apperr.Configf("start_date", "invalid date %s", start)
	}

	entries := make([]ScheduleEntry, 0, len(items))
	day := start
	dayNum := 0
	for next := 0; next < len(items); day = day.AddDays(1) {
		if IsWeekend(day) {
			continue
		}
		dayNum++
		for n := 0; n < capacity && next < len(items); n++ {
			entries = append(entries, ScheduleEntry{
				Item:     items[next],
				Date:     day,
				Day:      dayNum,
				Position: next,
			})
			next++
		}
	}
	return entries, nil
}

// ReviewDays returns the weekend dates from start up to the last scheduled
// date. They are shown as revision rows in the sheet.
func ReviewDays(entries []ScheduleEntry, start civil.Date) []civil.Date {
	last, ok := LastDate(entries)
	if !ok {
		return nil
	}
	var days []civil.Date
	for d := start; !d.After(last); d = d.AddDays(1) {
		if IsWeekend(d) {
			days = append(days, d)
		}
	}
	return days
}

// LastDate returns the date of the final entry.
func LastDate(entries []ScheduleEntry) (civil.Date, bool) {
	if len(entries) == 0 {
		return civil.Date{}, false
	}
	return entries[len(entries)-1].Date, true
}

// Due returns the entries scheduled on or before today.
func Due(entries []ScheduleEntry, today civil.Date) []ScheduleEntry {
	var due []ScheduleEntry
	for _, e := range entries {
		if !e.Date.After(today) {
			due = append(due, e)
		}
	}
	return due
}
