package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ytplan/internal/apperr"
	"ytplan/internal/retry"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Scopes are the OAuth scopes GoogleSheets needs.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// GoogleConfig configures a GoogleSheets store.
type GoogleConfig struct {
	// SpreadsheetID selects the spreadsheet directly. When empty the
	// spreadsheet is looked up by Name and created if missing.
	SpreadsheetID string
	Name          string

	// NoCreate skips creating a spreadsheet that Name does not find. The
	// store then reads as an empty table and refuses writes.
	NoCreate bool

	// ClientOptions are passed to the Sheets and Drive clients
	// (credentials, endpoint, HTTP client).
	ClientOptions []option.ClientOption

	// RequestsPerSecond caps calls to Google APIs. Zero disables the limit.
	RequestsPerSecond float64

	Retry  retry.Config
	Logger *slog.Logger
}

// GoogleSheets stores the table in the first worksheet of a Google spreadsheet.
type GoogleSheets struct {
	sheets  *sheets.Service
	drive   *drive.Service
	limiter *rate.Limiter
	retry   retry.Config
	logger  *slog.Logger

	spreadsheetID string
	name          string
	url           string
	sheetID       int64
	sheetTitle    string

	// size of the grid found by the last Read, used to blank out stale cells
	readRows, readCols int
	hasRead            bool
}

// OpenGoogleSheets connects to the spreadsheet described by cfg.
func OpenGoogleSheets(ctx context.Context, cfg GoogleConfig) (*GoogleSheets, error) {
	if cfg.SpreadsheetID == "" && cfg.Name == "" {
		return nil, apperr.Configf("sheet_name", "either sheet_name or spreadsheet_id is required")
	}

	sheetsSvc, err := sheets.NewService(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, apperr.Transient("sheets", "connect", err)
	}
	driveSvc, err := drive.NewService(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, apperr.Transient("drive", "connect", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &GoogleSheets{
		sheets:        sheetsSvc,
		drive:         driveSvc,
		limiter:       rate.NewLimiter(limit, 1),
		retry:         cfg.Retry,
		logger:        logger,
		spreadsheetID: cfg.SpreadsheetID,
		name:          cfg.Name,
	}

	if g.spreadsheetID == "" {
		id, err := g.findOrCreate(ctx, cfg.Name, !cfg.NoCreate)
		if err != nil {
			return nil, err
		}
		if id == "" {
			logger.Info("spreadsheet not found, not creating it", "name", cfg.Name)
			return g, nil
		}
		g.spreadsheetID = id
	}
	if err := g.loadMetadata(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// call runs fn under the rate limit and retry policy and classifies its failure.
func (g *GoogleSheets) call(ctx context.Context, service, op string, fn func(context.Context) error) error {
	err := retry.Do(ctx, g.retry, retry.GoogleAPI, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		g.logger.Debug("google api call", "service", service, "op", op)
		return fn(ctx)
	})
	return apperr.Transient(service, op, err)
}

// findOrCreate returns the ID of the spreadsheet called name. When none
// exists it is created, or "" is returned if create is false.
func (g *GoogleSheets) findOrCreate(ctx context.Context, name string, create bool) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)

	var files []*drive.File
	err := g.call(ctx, "drive", "find", func(ctx context.Context) error {
		list, err := g.drive.Files.List().Q(q).Fields("files(id,name)").PageSize(10).
			SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
		if err != nil {
			return err
		}
		files = list.Files
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(files) > 1 {
		g.logger.Warn("several spreadsheets share the name, using the first",
			"name", name, "count", len(files), "id", files[0].Id)
	}
	if len(files) > 0 {
		return files[0].Id, nil
	}
	if !create {
		return "", nil
	}

	var id string
	err = g.call(ctx, "sheets", "create", func(ctx context.Context) error {
		created, err := g.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: name},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.SpreadsheetId
		return nil
	})
	if err != nil {
		return "", err
	}
	g.logger.Info("created spreadsheet", "name", name, "id", id)
	return id, nil
}

func (g *GoogleSheets) loadMetadata(ctx context.Context) error {
	return g.call(ctx, "sheets", "metadata", func(ctx context.Context) error {
		ss, err := g.sheets.Spreadsheets.Get(g.spreadsheetID).
			Fields("spreadsheetId,spreadsheetUrl,sheets(properties(sheetId,title))").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
			return retry.Permanent(fmt.Errorf("spreadsheet %s has no worksheet", g.spreadsheetID))
		}
		g.url = ss.SpreadsheetUrl
		g.sheetID = ss.Sheets[0].Properties.SheetId
		g.sheetTitle = ss.Sheets[0].Properties.Title
		return nil
	})
}

// SpreadsheetID returns the identifier of the backing spreadsheet. It is
// empty when the spreadsheet was not found and not created.
func (g *GoogleSheets) SpreadsheetID() string { return g.spreadsheetID }

// URL returns the spreadsheet link, or "" when there is no spreadsheet.
func (g *GoogleSheets) URL() string {
	if g.url != "" || g.spreadsheetID == "" {
		return g.url
	}
	return "https://docs.google.com/spreadsheets/d/" + g.spreadsheetID
}

// missing fails operations that need an existing spreadsheet.
func (g *GoogleSheets) missing(op string) error {
	if g.spreadsheetID != "" {
		return nil
	}
	return apperr.Configf("sheet_name", "cannot %s: spreadsheet %q does not exist", op, g.name)
}

func (g *GoogleSheets) quotedTitle() string {
	return "'" + strings.ReplaceAll(g.sheetTitle, "'", "''") + "'"
}

// Read fetches the whole worksheet. Formulas are returned as written so that
// HYPERLINK targets can be recovered.
func (g *GoogleSheets) Read(ctx context.Context) (*Table, error) {
	if g.spreadsheetID == "" {
		return &Table{}, nil
	}
	var values [][]interface{}
	err := g.call(ctx, "sheets", "read", func(ctx context.Context) error {
		resp, err := g.sheets.Spreadsheets.Values.Get(g.spreadsheetID, g.quotedTitle()).
			ValueRenderOption("FORMULA").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		values = resp.Values
		return nil
	})
	if err != nil {
		return nil, err
	}

	grid := make([][]string, len(values))
	g.readRows, g.readCols = len(values), 0
	for i, line := range values {
		grid[i] = make([]string, len(line))
		for j, v := range line {
			grid[i][j] = cellString(v)
		}
		if len(line) > g.readCols {
			g.readCols = len(line)
		}
	}
	g.hasRead = true
	return Decode(grid)
}

// Write replaces the worksheet content with t in a single update. Cells
// outside the new table but inside the previously read grid are cleared.
func (g *GoogleSheets) Write(ctx context.Context, t *Table) error {
	if err := g.missing("write"); err != nil {
		return err
	}
	if !g.hasRead {
		if _, err := g.Read(ctx); err != nil {
			return err
		}
	}

	grid := t.Encode()
	rows, cols := len(grid), len(grid[0])
	if g.readRows > rows {
		rows = g.readRows
	}
	if g.readCols > cols {
		cols = g.readCols
	}

	values := make([][]interface{}, rows)
	for i := range values {
		values[i] = make([]interface{}, cols)
		for j := range values[i] {
			values[i][j] = ""
			if i < len(grid) && j < len(grid[i]) {
				values[i][j] = grid[i][j]
			}
		}
	}

	err := g.call(ctx, "sheets", "write", func(ctx context.Context) error {
		_, err := g.sheets.Spreadsheets.Values.Update(g.spreadsheetID, g.quotedTitle()+"!A1",
			&sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	g.readRows, g.readCols = len(grid), len(grid[0])
	return nil
}

// Format applies the header style and the progress colour rules.
func (g *GoogleSheets) Format(ctx context.Context, t *Table) error {
	if err := g.missing("format"); err != nil {
		return err
	}
	existing := 0
	err := g.call(ctx, "sheets", "format", func(ctx context.Context) error {
		ss, err := g.sheets.Spreadsheets.Get(g.spreadsheetID).
			Fields("sheets(properties(sheetId),conditionalFormats)").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, s := range ss.Sheets {
			if s.Properties != nil && s.Properties.SheetId == g.sheetID {
				existing = len(s.ConditionalFormats)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	reqs := formatRequests(g.sheetID, existing, t)
	return g.call(ctx, "sheets", "format", func(ctx context.Context) error {
		_, err := g.sheets.Spreadsheets.BatchUpdate(g.spreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
		return err
	})
}

// writerRoles already allow editing.
var writerRoles = map[string]bool{"owner": true, "organizer": true, "fileOrganizer": true, "writer": true}

// Share grants writer access to email unless it already has it.
func (g *GoogleSheets) Share(ctx context.Context, email string) error {
	if err := g.missing("share"); err != nil {
		return err
	}
	var perms []*drive.Permission
	err := g.call(ctx, "drive", "share", func(ctx context.Context) error {
		list, err := g.drive.Permissions.List(g.spreadsheetID).
			Fields("permissions(id,emailAddress,role)").
			SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return err
		}
		perms = list.Permissions
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range perms {
		if strings.EqualFold(p.EmailAddress, email) && writerRoles[p.Role] {
			g.logger.Debug("spreadsheet already shared", "email", email, "role", p.Role)
			return nil
		}
	}

	err = g.call(ctx, "drive", "share", func(ctx context.Context) error {
		_, err := g.drive.Permissions.Create(g.spreadsheetID, &drive.Permission{
			Type:         "user",
			Role:         "writer",
			EmailAddress: email,
		}).SupportsAllDrives(true).Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	g.logger.Info("shared spreadsheet", "email", email)
	return nil
}

func cellString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
