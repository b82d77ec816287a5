package sheet

import (
	"strings"

	"cloud.google.com/go/civil"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
)

// Diff summarises what a merge changed.
type Diff struct {
	Added          int // items new to the sheet
	Updated        int // known items whose title, link or date changed
	Unchanged      int
	Archived       int // rows kept at the bottom because they carry marks
	Dropped        int // stale rows without any marks
	PreservedMarks int // non-empty participant cells carried over
}

// Merge combines a freshly built schedule with the current sheet content.
//
// Rows are matched by item identifier. Participant marks of matched rows are
// copied verbatim; only the Day, Date, title and link are taken from the new
// schedule. When the item list or the sheet holds the same identifier twice,
// Merge fails with a data integrity error and returns no table.
func Merge(entries []plan.ScheduleEntry, reviewDays []civil.Date, participants []string, existing *Table) (*Table, Diff, error) {
	var diff Diff
	if existing == nil {
		existing = &Table{}
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Item.ID == "" {
			return nil, diff, &apperr.IntegrityError{Reason: "item without identifier: " + e.Item.Title}
		}
		if seen[e.Item.ID] {
			return nil, diff, &apperr.IntegrityError{Reason: "duplicate item identifier", ID: e.Item.ID}
		}
		seen[e.Item.ID] = true
	}

	byID := map[string]int{}
	byDate := map[civil.Date]int{}
	for i, r := range existing.Rows {
		switch {
		case r.Kind == RowWeekend:
			if _, ok := byDate[r.Date]; !ok {
				byDate[r.Date] = i
			}
		case r.ID != "":
			if _, dup := byID[r.ID]; dup {
				return nil, diff, &apperr.IntegrityError{Reason: "sheet holds the same item twice", ID: r.ID}
			}
			byID[r.ID] = i
		}
	}

	merged := &Table{Participants: mergeParticipants(participants, existing.Participants)}
	used := make([]bool, len(existing.Rows))

	carry := func(from Row) map[string]string {
		marks := make(map[string]string, len(from.Marks))
		for p, v := range from.Marks {
			marks[p] = v
			if strings.TrimSpace(v) != "" {
				diff.PreservedMarks++
			}
		}
		return marks
	}

	addWeekend := func(d civil.Date) {
		row := Row{Kind: RowWeekend, Date: d, Marks: map[string]string{}}
		if i, ok := byDate[d]; ok && !used[i] {
			used[i] = true
			row.Marks = carry(existing.Rows[i])
		}
		merged.Rows = append(merged.Rows, row)
	}

	next := 0
	for _, e := range entries {
		for next < len(reviewDays) && reviewDays[next].Before(e.Date) {
			addWeekend(reviewDays[next])
			next++
		}

		row := Row{
			Kind:  RowStudy,
			Day:   e.Day,
			Date:  e.Date,
			Title: e.Item.Title,
			URL:   e.Item.URL,
			ID:    e.Item.ID,
			Marks: map[string]string{},
		}
		if i, ok := byID[e.Item.ID]; ok {
			used[i] = true
			old := existing.Rows[i]
			row.Marks = carry(old)
			if old.Kind != RowStudy || old.Day != row.Day || old.Date != row.Date ||
				old.Title != row.Title || old.URL != row.URL {
				diff.Updated++
			} else {
				diff.Unchanged++
			}
		} else {
			diff.Added++
		}
		merged.Rows = append(merged.Rows, row)
	}
	for ; next < len(reviewDays); next++ {
		addWeekend(reviewDays[next])
	}

	for i, old := range existing.Rows {
		if used[i] {
			continue
		}
		if !old.hasMarks() {
			diff.Dropped++
			continue
		}
		row := old
		row.Kind = RowArchived
		row.Day = 0
		if old.Kind == RowWeekend {
			row.Title = ReviewTitle
		}
		row.Marks = carry(old)
		merged.Rows = append(merged.Rows, row)
		diff.Archived++
	}

	return merged, diff, nil
}

// mergeParticipants returns the configured participants followed by any
// other participant columns already present in the sheet.
func mergeParticipants(configured, existing []string) []string {
	out := make([]string, 0, len(configured)+len(existing))
	seen := map[string]bool{}
	for _, list := range [][]string{configured, existing} {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] || isFixed(p) {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
