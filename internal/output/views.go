package output

import (
	"fmt"
	"io"
	"time"

	"ytplan/internal/plan"
	"ytplan/internal/sheet"
	"ytplan/internal/tracker"
)

// WriteEntries renders a schedule built from the playlist.
func WriteEntries(w io.Writer, entries []plan.ScheduleEntry) error {
	t := NewTable(w, []string{"Day", "Date", "Weekday", "Video Title", "Video URL"})
	for _, e := range entries {
		t.AddRow([]string{
			fmt.Sprintf("Day %d", e.Day),
			e.Date.String(),
			e.Date.In(time.UTC).Weekday().String()[:3],
			e.Item.Title,
			e.Item.URL,
		})
	}
	return t.Render()
}

// WriteSheet renders a tracking table with one status glyph per participant.
func WriteSheet(w io.Writer, table *sheet.Table) error {
	header := []string{"Day", "Date", "Video Title", "Video ID"}
	header = append(header, table.Participants...)
	t := NewTable(w, header)
	for _, r := range table.Rows {
		row := []string{r.Label(), r.Date.String(), r.Title, r.ID}
		if r.Kind == sheet.RowWeekend {
			row[2] = sheet.ReviewTitle
		}
		for _, p := range table.Participants {
			cell := ""
			if r.Kind == sheet.RowStudy {
				cell = sheet.Glyph(sheet.IsDone(r.Mark(p)))
			}
			row = append(row, cell)
		}
		t.AddRow(row)
	}
	return t.Render()
}

// WriteProgress renders the per-participant summary of a status report.
func (p *Printer) WriteProgress(statuses []tracker.ParticipantStatus) error {
	t := NewTable(p.out, []string{"Participant", "Done", "Due", "Total", "Behind"})
	for _, s := range statuses {
		t.AddRow([]string{
			s.Name,
			fmt.Sprint(s.Done),
			fmt.Sprint(s.Due),
			fmt.Sprint(s.Total),
			p.Deficit(s.Deficit),
		})
	}
	return t.Render()
}
