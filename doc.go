// Package ytplan turns a YouTube playlist into a shared study schedule and
// tracks who keeps up with it.
//
// Overview
//
// A run of ytplan does one of two things:
//
//   - publish: fetch the playlist, distribute its videos over weekdays at a
//     fixed number per day, and merge the result into a tracking sheet with
//     one column per participant. Marks participants already entered are
//     matched by video ID and never lost.
//   - remind: read the sheet, compare each participant's completed items with
//     the number scheduled up to today, and email everyone who is behind.
//
// The functions in this package cover the pure parts:
//
//	items, err := ytplan.ListPlaylist(ctx, "https://www.youtube.com/playlist?list=PL...")
//	if err != nil {
//		log.Fatal(err)
//	}
//	entries, err := ytplan.BuildSchedule(items, civil.Date{Year: 2024, Month: 1, Day: 1}, 3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, n := range ytplan.Evaluate(today, entries, marks, participants) {
//		fmt.Printf("%s is %d behind\n", n.Participant.Name, n.Deficit)
//	}
//
// Configuration
//
// The ytplan command reads its settings once at startup from, highest
// priority first:
//
//  1. Command-line flags
//  2. Environment variables, with a .env file loaded into the environment
//  3. Config file (ytplan.yaml or ~/.config/ytplan/ytplan.yaml)
//  4. Default values
//
// Environment variables:
//
//	PLAYLIST_URL, PLAYLIST_NAME, START_DATE (YYYY-MM-DD), DAILY_CAPACITY (3)
//	PARTICIPANTS           Alice=alice@example.com,Bob=bob@example.com
//	SHEET_NAME, SPREADSHEET_ID, SHARE_EMAIL
//	GOOGLE_APPLICATION_CREDENTIALS (credentials.json)
//	STORE (sheets|file), STORE_PATH, SOURCE (ytdlp|api), YOUTUBE_API_KEY
//	DRY_RUN, EMAIL_ENABLED, GRACE_DAYS, TIMEZONE
//	SMTP_HOST, SMTP_PORT, SMTP_EMAIL, SMTP_PASSWORD, SMTP_FROM
//
// Error Handling
//
// Failures fall into three categories, see ErrConfiguration,
// ErrTransientService and ErrDataIntegrity. A data integrity error is always
// reported before anything is written.
package ytplan
