// Package remind decides who is behind schedule and notifies them.
//
// Evaluation is a pure function of the schedule, the progress marks and the
// current date. It keeps no memory of earlier runs: a participant who is
// behind on two consecutive days receives two reminders.
package remind

import (
	"fmt"

	"cloud.google.com/go/civil"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
	"ytplan/internal/sheet"
)

// MarkKey identifies the progress of one participant on one item.
type MarkKey struct {
	Participant string
	ItemID      string
}

// Marks records completed items. Missing keys are pending.
type Marks map[MarkKey]bool

// Done reports whether participant completed item id.
func (m Marks) Done(participant, id string) bool {
	return m[MarkKey{Participant: participant, ItemID: id}]
}

// Notice tells a participant how far behind schedule they are.
type Notice struct {
	Participant plan.Participant

	// Expected is the number of items due by today.
	Expected int
	// Actual is the number of due items marked done.
	Actual int
	// Deficit is Expected - Actual, always positive.
	Deficit int

	// Overdue lists the due items not marked done, in schedule order.
	Overdue []plan.ScheduleEntry
}

// Evaluator computes reminder notices.
type Evaluator struct {
	// GraceDays delays when an entry counts as due: an entry is due once
	// its date plus GraceDays is on or before today.
	GraceDays int
}

// Evaluate returns a notice for every participant with fewer completed items
// than items due, in participant order. Nobody is penalised for being ahead.
func (e Evaluator) Evaluate(today civil.Date, entries []plan.ScheduleEntry, marks Marks, participants []plan.Participant) []Notice {
	cutoff := today.AddDays(-e.GraceDays)
	due := plan.Due(entries, cutoff)

	var notices []Notice
	for _, p := range participants {
		n := Notice{Participant: p, Expected: len(due)}
		for _, entry := range due {
			if marks.Done(p.Name, entry.Item.ID) {
				n.Actual++
			} else {
				n.Overdue = append(n.Overdue, entry)
			}
		}
		if n.Actual < n.Expected {
			n.Deficit = n.Expected - n.Actual
			notices = append(notices, n)
		}
	}
	return notices
}

// Evaluate is Evaluator{}.Evaluate: entries are due on their own date.
func Evaluate(today civil.Date, entries []plan.ScheduleEntry, marks Marks, participants []plan.Participant) []Notice {
	return Evaluator{}.Evaluate(today, entries, marks, participants)
}

// FromTable extracts the schedule and the completed marks from a stored
// table. Weekend and archived rows are ignored. Marks that are neither empty
// nor a done token count as pending and are reported as warnings, after the
// notes Decode skipped.
func FromTable(t *sheet.Table) ([]plan.ScheduleEntry, Marks, []string, error) {
	var (
		entries  []plan.ScheduleEntry
		warnings = append([]string(nil), t.Skipped...)
		seen     = map[string]bool{}
		marks    = Marks{}
	)
	for _, r := range t.StudyRows() {
		if r.ID == "" {
			return nil, nil, nil, &apperr.IntegrityError{Reason: fmt.Sprintf("row %q on %s has no video identifier", r.Title, r.Date)}
		}
		if seen[r.ID] {
			return nil, nil, nil, &apperr.IntegrityError{Reason: "sheet holds the same item twice", ID: r.ID}
		}
		seen[r.ID] = true

		entries = append(entries, plan.ScheduleEntry{
			Item:     plan.Item{Title: r.Title, ID: r.ID, URL: r.URL},
			Date:     r.Date,
			Day:      r.Day,
			Position: len(entries),
		})
		for _, p := range t.Participants {
			raw := r.Mark(p)
			switch sheet.ParseMark(raw) {
			case sheet.MarkDone:
				marks[MarkKey{Participant: p, ItemID: r.ID}] = true
			case sheet.MarkUnknown:
				warnings = append(warnings, fmt.Sprintf("%s: %s %q: unrecognised mark %q counted as pending", p, r.Label(), r.Title, raw))
			}
		}
	}
	return entries, marks, warnings, nil
}
