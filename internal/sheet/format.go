package sheet

import (
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

var (
	headerColor  = &sheets.Color{Red: 0.74, Green: 0.86, Blue: 0.95}
	doneColor    = &sheets.Color{Red: 0.80, Green: 0.94, Blue: 0.80}
	pendingColor = &sheets.Color{Red: 1.0, Green: 0.84, Blue: 0.84}
	unknownColor = &sheets.Color{Red: 1.0, Green: 0.93, Blue: 0.70}
	weekendColor = &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9}
	archiveColor = &sheets.Color{Red: 0.8, Green: 0.8, Blue: 0.8}

	// dayBands colour study days in a repeating five-day cycle.
	dayBands = []*sheets.Color{
		{Red: 0.9, Green: 0.95, Blue: 1.0},
		{Red: 0.9, Green: 0.85, Blue: 0.9},
		{Red: 1.0, Green: 0.95, Blue: 0.9},
		{Red: 1.0, Green: 0.8, Blue: 0.95},
		{Red: 0.85, Green: 0.8, Blue: 0.9},
	}
)

// formatRequests builds the batch update that restyles the sheet. Existing
// conditional rules are removed first so that repeated runs do not stack them.
func formatRequests(sheetID int64, existingRules int, t *Table) []*sheets.Request {
	var reqs []*sheets.Request
	for i := existingRules - 1; i >= 0; i-- {
		reqs = append(reqs, &sheets.Request{
			DeleteConditionalFormatRule: &sheets.DeleteConditionalFormatRuleRequest{
				SheetId: sheetID,
				Index:   int64(i),
			},
		})
	}

	reqs = append(reqs,
		&sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:        sheetID,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
			Fields: "gridProperties.frozenRowCount",
		}},
		&sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1},
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				BackgroundColor: headerColor,
				TextFormat:      &sheets.TextFormat{Bold: true},
			}},
			Fields: "userEnteredFormat(backgroundColor,textFormat)",
		}},
	)

	rows := int64(len(t.Rows) + 1)
	cols := int64(len(fixedColumns) + len(t.Participants))
	var index int64
	add := func(startCol, endCol int64, formula string, format *sheets.CellFormat) {
		reqs = append(reqs, &sheets.Request{AddConditionalFormatRule: &sheets.AddConditionalFormatRuleRequest{
			Index: index,
			Rule: &sheets.ConditionalFormatRule{
				Ranges: []*sheets.GridRange{{
					SheetId:          sheetID,
					StartRowIndex:    1,
					EndRowIndex:      rows,
					StartColumnIndex: startCol,
					EndColumnIndex:   endCol,
				}},
				BooleanRule: &sheets.BooleanRule{
					Condition: &sheets.BooleanCondition{
						Type:   "CUSTOM_FORMULA",
						Values: []*sheets.ConditionValue{{UserEnteredValue: formula}},
					},
					Format: format,
				},
			},
		}})
		index++
	}

	add(0, cols, fmt.Sprintf(`=$A2="%s"`, weekendLabel),
		&sheets.CellFormat{BackgroundColor: weekendColor, TextFormat: &sheets.TextFormat{Bold: true}})
	add(0, cols, fmt.Sprintf(`=$A2="%s"`, archivedLabel),
		&sheets.CellFormat{BackgroundColor: archiveColor, TextFormat: &sheets.TextFormat{Italic: true}})

	for i := range t.Participants {
		col := int64(len(fixedColumns) + i)
		cell := columnName(int(col)) + "2"
		add(col, col+1, doneFormula(cell), &sheets.CellFormat{BackgroundColor: doneColor})
		add(col, col+1, fmt.Sprintf(`=LEN(TRIM(%s))=0`, cell), &sheets.CellFormat{BackgroundColor: pendingColor})
		add(col, col+1, fmt.Sprintf(`=LEN(TRIM(%s))>0`, cell), &sheets.CellFormat{BackgroundColor: unknownColor})
	}

	for i, color := range dayBands {
		formula := fmt.Sprintf(
			`=AND(ISNUMBER(VALUE(REGEXEXTRACT($A2,"[0-9]+"))),MOD(VALUE(REGEXEXTRACT($A2,"[0-9]+")),%d)=%d)`,
			len(dayBands), (i+1)%len(dayBands))
		add(0, int64(len(fixedColumns)), formula, &sheets.CellFormat{BackgroundColor: color})
	}
	return reqs
}

// doneFormula matches a cell holding any of the done tokens.
func doneFormula(cell string) string {
	terms := make([]string, len(doneTokens))
	for i, tok := range doneTokens {
		terms[i] = fmt.Sprintf(`LOWER(TRIM(%s))="%s"`, cell, tok)
	}
	return "=OR(" + strings.Join(terms, ",") + ")"
}

// columnName converts a 0-based column index to its A1 letters.
func columnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}
