package sheet

import "strings"

// doneTokens are the cell values, compared case-insensitively after trimming,
// that count as a completed video.
var doneTokens = []string{"done", "x", "yes", "y", "true", "1", "✓", "✔", "✅"}

// MarkState is the parsed state of a progress cell.
type MarkState int

const (
	// MarkPending is an empty cell.
	MarkPending MarkState = iota
	// MarkDone is a cell holding one of the done tokens.
	MarkDone
	// MarkUnknown is free text that is neither empty nor a done token.
	MarkUnknown
)

// ParseMark classifies a raw progress cell.
func ParseMark(raw string) MarkState {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return MarkPending
	}
	for _, tok := range doneTokens {
		if v == tok {
			return MarkDone
		}
	}
	return MarkUnknown
}

// IsDone reports whether a raw progress cell marks the video as watched.
// Unparseable text counts as pending.
func IsDone(raw string) bool {
	return ParseMark(raw) == MarkDone
}

// Glyphs used when rendering progress outside the sheet.
const (
	GlyphDone    = "✅"
	GlyphPending = "⏳"
)

// Glyph returns the rendering of a progress state.
func Glyph(done bool) string {
	if done {
		return GlyphDone
	}
	return GlyphPending
}
