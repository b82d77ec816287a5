package remind

import (
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
	"ytplan/internal/sheet"
)

var monday = civil.Date{Year: 2024, Month: 1, Day: 1}

func buildSchedule(t *testing.T, n int) []plan.ScheduleEntry {
	t.Helper()
	items := make([]plan.Item, n)
	for i := range items {
		id := fmt.Sprintf("v%d", i+1)
		items[i] = plan.Item{Title: "Video " + id, ID: id, URL: "https://www.youtube.com/watch?v=" + id}
	}
	entries, err := plan.Build(items, monday, 3)
	require.NoError(t, err)
	return entries
}

var team = []plan.Participant{
	{Name: "Alice", Email: "alice@example.com"},
	{Name: "Bob", Email: "bob@example.com"},
}

func TestEvaluate_ZeroCompletions(t *testing.T) {
	entries := buildSchedule(t, 40)
	today := monday.AddDays(10) // Thursday of the second week

	// Nine weekdays have passed: 2024-01-01..05 and 08..11.
	expected := 0
	for _, e := range entries {
		if !e.Date.After(today) {
			expected++
		}
	}
	require.Equal(t, 27, expected)

	notices := Evaluate(today, entries, Marks{}, team[:1])
	require.Len(t, notices, 1)
	n := notices[0]
	assert.Equal(t, "Alice", n.Participant.Name)
	assert.Equal(t, expected, n.Expected)
	assert.Equal(t, 0, n.Actual)
	assert.Equal(t, expected, n.Deficit)
	assert.Len(t, n.Overdue, expected)
}

func TestEvaluate_PartialProgress(t *testing.T) {
	entries := buildSchedule(t, 10)
	today := monday.AddDays(1) // Tuesday: v1..v6 due

	marks := Marks{}
	for _, id := range []string{"v1", "v2", "v3", "v5"} {
		marks[MarkKey{Participant: "Alice", ItemID: id}] = true
	}
	for _, id := range []string{"v1", "v2", "v3", "v4", "v5", "v6", "v7"} {
		marks[MarkKey{Participant: "Bob", ItemID: id}] = true
	}

	notices := Evaluate(today, entries, marks, team)
	require.Len(t, notices, 1, "Bob is ahead and gets no reminder")
	n := notices[0]
	assert.Equal(t, "Alice", n.Participant.Name)
	assert.Equal(t, 6, n.Expected)
	assert.Equal(t, 4, n.Actual)
	assert.Equal(t, 2, n.Deficit)
	require.Len(t, n.Overdue, 2)
	assert.Equal(t, "v4", n.Overdue[0].Item.ID)
	assert.Equal(t, "v6", n.Overdue[1].Item.ID)
}

func TestEvaluate_NothingDue(t *testing.T) {
	entries := buildSchedule(t, 5)
	assert.Empty(t, Evaluate(monday.AddDays(-1), entries, Marks{}, team))
	assert.Empty(t, Evaluate(monday, nil, Marks{}, team))
}

func TestEvaluator_GraceDays(t *testing.T) {
	entries := buildSchedule(t, 10)
	today := monday.AddDays(3) // Thursday

	strict := Evaluate(today, entries, Marks{}, team[:1])
	require.Len(t, strict, 1)
	assert.Equal(t, 10, strict[0].Expected)

	lenient := Evaluator{GraceDays: 3}.Evaluate(today, entries, Marks{}, team[:1])
	require.Len(t, lenient, 1)
	assert.Equal(t, 3, lenient[0].Expected, "only Monday's entries are past the grace period")
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	entries := buildSchedule(t, 12)
	marks := Marks{{Participant: "Bob", ItemID: "v2"}: true}
	today := monday.AddDays(2)

	first := Evaluate(today, entries, marks, team)
	second := Evaluate(today, entries, marks, team)
	assert.Equal(t, first, second)
}

func TestFromTable(t *testing.T) {
	entries := buildSchedule(t, 8)
	table, _, err := sheet.Merge(entries, plan.ReviewDays(entries, monday), []string{"Alice", "Bob"}, nil)
	require.NoError(t, err)
	table.Rows[0].Marks["Alice"] = "Done"
	table.Rows[1].Marks["Alice"] = "half way"
	table.Rows[1].Marks["Bob"] = "✅"
	table.Rows = append(table.Rows, sheet.Row{
		Kind: sheet.RowArchived, ID: "gone", Date: monday, Marks: map[string]string{"Alice": "done"},
	})

	got, marks, warnings, err := FromTable(table)
	require.NoError(t, err)
	require.Len(t, got, 8)
	for i := range got {
		assert.Equal(t, entries[i].Item, got[i].Item)
		assert.Equal(t, entries[i].Date, got[i].Date)
		assert.Equal(t, entries[i].Day, got[i].Day)
	}

	assert.True(t, marks.Done("Alice", "v1"))
	assert.False(t, marks.Done("Alice", "v2"))
	assert.True(t, marks.Done("Bob", "v2"))
	assert.False(t, marks.Done("Alice", "gone"))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "half way")
}

func TestFromTable_ReportsSkippedNotes(t *testing.T) {
	table, err := sheet.Decode([][]string{
		{"Day", "Date", "Video Title", "Video ID", "Alice"},
		{"Day 1", "2024-01-01", "Intro", "v1", "done"},
		{"bring snacks", "", "", "", ""},
	})
	require.NoError(t, err)

	entries, marks, warnings, err := FromTable(table)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, marks.Done("Alice", "v1"))
	assert.Equal(t, []string{`row 3: ignored note "bring snacks"`}, warnings)
}

func TestFromTable_Integrity(t *testing.T) {
	dup := &sheet.Table{Rows: []sheet.Row{
		{Kind: sheet.RowStudy, ID: "a", Date: monday},
		{Kind: sheet.RowStudy, ID: "a", Date: monday},
	}}
	_, _, _, err := FromTable(dup)
	assert.ErrorIs(t, err, apperr.ErrDataIntegrity)

	noID := &sheet.Table{Rows: []sheet.Row{{Kind: sheet.RowStudy, Title: "mystery", Date: monday}}}
	_, _, _, err = FromTable(noID)
	assert.ErrorIs(t, err, apperr.ErrDataIntegrity)
}
