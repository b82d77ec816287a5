// Package sheet models the shared tracking spreadsheet: its rows, the
// merge that preserves participant progress, and the stores that persist it.
package sheet

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"ytplan/internal/apperr"
)

// Fixed column headers, in sheet order. Participant columns follow them.
const (
	ColDay   = "Day"
	ColDate  = "Date"
	ColTitle = "Video Title"
	ColURL   = "Video URL"
	ColID    = "Video ID"
)

var fixedColumns = []string{ColDay, ColDate, ColTitle, ColURL, ColID}

const (
	dateLayout    = "2006-01-02"
	weekendLabel  = "Weekend"
	archivedLabel = "Archived"
	linkText      = "Link"
)

// ReviewTitle is the title shown on weekend rows.
const ReviewTitle = "Revision / Code / Notes"

// RowKind distinguishes scheduled items from the other rows in the sheet.
type RowKind int

const (
	// RowStudy is a scheduled video.
	RowStudy RowKind = iota
	// RowWeekend is a revision day without new videos.
	RowWeekend
	// RowArchived is a video that left the playlist but still carries marks.
	RowArchived
)

func (k RowKind) String() string {
	switch k {
	case RowWeekend:
		return "weekend"
	case RowArchived:
		return "archived"
	default:
		return "study"
	}
}

// Row is one line of the tracking sheet.
type Row struct {
	Kind  RowKind    `json:"kind"`
	Day   int        `json:"day,omitempty"` // study day number, study rows only
	Date  civil.Date `json:"date"`
	Title string     `json:"title"`
	URL   string     `json:"url,omitempty"`
	ID    string     `json:"id,omitempty"`

	// Marks holds the raw cell text per participant column.
	Marks map[string]string `json:"marks,omitempty"`
}

// Label returns the text of the Day column.
func (r Row) Label() string {
	switch r.Kind {
	case RowWeekend:
		return weekendLabel
	case RowArchived:
		return archivedLabel
	default:
		if r.Day > 0 {
			return fmt.Sprintf("Day %d", r.Day)
		}
		return ""
	}
}

// Mark returns the raw mark of participant.
func (r Row) Mark(participant string) string {
	return r.Marks[participant]
}

// hasMarks reports whether any participant wrote something in the row.
func (r Row) hasMarks() bool {
	for _, v := range r.Marks {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Table is the full content of the tracking sheet.
type Table struct {
	Participants []string `json:"participants"`
	Rows         []Row    `json:"rows"`

	// Skipped describes rows Decode ignored as free-form notes.
	Skipped []string `json:"-"`
}

// Header returns the header row.
func (t *Table) Header() []string {
	header := make([]string, 0, len(fixedColumns)+len(t.Participants))
	header = append(header, fixedColumns...)
	return append(header, t.Participants...)
}

// StudyRows returns the scheduled video rows in sheet order.
func (t *Table) StudyRows() []Row {
	var rows []Row
	for _, r := range t.Rows {
		if r.Kind == RowStudy {
			rows = append(rows, r)
		}
	}
	return rows
}

// Encode renders the table as a grid of user-entered cell values, header first.
func (t *Table) Encode() [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	grid = append(grid, t.Header())
	for _, r := range t.Rows {
		line := make([]string, 0, len(fixedColumns)+len(t.Participants))
		title, link, id := r.Title, "", r.ID
		if r.Kind == RowWeekend {
			title = ReviewTitle
		} else if r.URL != "" {
			link = hyperlink(r.URL)
		}
		date := ""
		if r.Date.IsValid() {
			date = r.Date.String()
		}
		line = append(line, r.Label(), date, literal(title), link, literal(id))
		for _, p := range t.Participants {
			line = append(line, r.Marks[p])
		}
		grid = append(grid, line)
	}
	return grid
}

// Decode parses a raw grid, header first, as read from a store. An empty grid
// is an empty table.
func Decode(grid [][]string) (*Table, error) {
	t := &Table{}
	if len(grid) == 0 || isBlank(grid[0]) {
		return t, nil
	}

	cols := map[string]int{}
	for i, h := range grid[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := cols[h]; dup {
			return nil, &apperr.IntegrityError{Reason: "duplicate column " + strconv.Quote(h)}
		}
		cols[h] = i
		if !isFixed(h) {
			t.Participants = append(t.Participants, h)
		}
	}
	for _, required := range []string{ColDay, ColDate, ColTitle} {
		if _, ok := cols[required]; !ok {
			return nil, &apperr.IntegrityError{Reason: "sheet header is missing column " + strconv.Quote(required)}
		}
	}

	cell := func(line []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(line) {
			return ""
		}
		return line[i]
	}

	for n, line := range grid[1:] {
		if isBlank(line) {
			continue
		}
		r := Row{
			Title: strings.TrimSpace(cell(line, ColTitle)),
			URL:   extractURL(cell(line, ColURL)),
			ID:    strings.TrimSpace(cell(line, ColID)),
			Marks: map[string]string{},
		}
		for _, p := range t.Participants {
			if v := cell(line, p); v != "" {
				r.Marks[p] = v
			}
		}

		label := strings.TrimSpace(cell(line, ColDay))
		switch {
		case strings.EqualFold(label, weekendLabel):
			r.Kind = RowWeekend
			r.Title = ""
		case strings.EqualFold(label, archivedLabel):
			r.Kind = RowArchived
		default:
			r.Kind = RowStudy
			r.Day = parseDayLabel(label)
		}
		if r.ID == "" && r.Kind != RowWeekend {
			r.ID = videoID(r.URL)
		}

		d, err := parseDate(cell(line, ColDate))
		if err != nil && r.Kind == RowStudy && r.Day == 0 && r.ID == "" {
			t.Skipped = append(t.Skipped, fmt.Sprintf("row %d: ignored note %q", n+2, noteText(line)))
			continue
		}
		if err != nil && r.Kind == RowStudy {
			return nil, &apperr.IntegrityError{
				Reason: fmt.Sprintf("row %d: %v", n+2, err),
				ID:     r.ID,
			}
		}
		r.Date = d
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

// noteText joins the non-empty cells of line.
func noteText(line []string) string {
	var parts []string
	for _, v := range line {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func isFixed(h string) bool {
	for _, c := range fixedColumns {
		if c == h {
			return true
		}
	}
	return false
}

func isBlank(line []string) bool {
	for _, v := range line {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dayLabelRegex = regexp.MustCompile(`(?i)^day\s*(\d+)$`)

func parseDayLabel(label string) int {
	m := dayLabelRegex.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseDate accepts ISO dates and spreadsheet serial numbers.
func parseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("missing date")
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return civil.DateOf(sheetsEpoch.AddDate(0, 0, int(math.Floor(f)))), nil
	}
	return civil.Date{}, fmt.Errorf("invalid date %q (want %s)", s, dateLayout)
}

var hyperlinkRegex = regexp.MustCompile(`(?i)^=HYPERLINK\(\s*"((?:[^"]|"")+)"`)

// hyperlink returns a HYPERLINK formula pointing at u.
func hyperlink(u string) string {
	return fmt.Sprintf(`=HYPERLINK("%s", "%s")`, strings.ReplaceAll(u, `"`, `""`), linkText)
}

// extractURL returns the target of a HYPERLINK formula, or the cell itself.
func extractURL(cell string) string {
	cell = strings.TrimSpace(cell)
	if m := hyperlinkRegex.FindStringSubmatch(cell); m != nil {
		return strings.ReplaceAll(m[1], `""`, `"`)
	}
	if strings.HasPrefix(cell, "=") {
		return ""
	}
	return cell
}

// videoID extracts the v= parameter of a YouTube watch URL.
func videoID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	if strings.HasSuffix(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	return ""
}

// literal keeps text that a spreadsheet would otherwise interpret as a
// formula or number as plain text.
func literal(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\'':
		return "'" + s
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return "'" + s
	}
	return s
}
