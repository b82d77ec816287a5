package sheet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ytplan/internal/apperr"
	"ytplan/internal/retry"
)

// fakeGoogle emulates the subset of the Sheets and Drive APIs used by GoogleSheets.
type fakeGoogle struct {
	mu          sync.Mutex
	grid        [][]interface{}
	rules       int
	permissions []*drive.Permission
	failReads   int // number of values reads answered with 503
	files       []*drive.File

	createdSheets []string
	written   *sheets.ValueRange
	batches   []*sheets.BatchUpdateSpreadsheetRequest
	created   []*drive.Permission
	valueOpts string
	renderOpt string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	body, _ := io.ReadAll(r.Body)
	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case strings.Contains(path, "/permissions") && r.Method == http.MethodGet:
		reply(&drive.PermissionList{Permissions: f.permissions})
	case strings.Contains(path, "/permissions") && r.Method == http.MethodPost:
		var p drive.Permission
		_ = json.Unmarshal(body, &p)
		f.created = append(f.created, &p)
		f.permissions = append(f.permissions, &p)
		reply(&p)
	case strings.Contains(path, "/values/") && r.Method == http.MethodGet:
		if f.failReads > 0 {
			f.failReads--
			w.WriteHeader(http.StatusServiceUnavailable)
			reply(map[string]any{"error": map[string]any{"code": 503, "message": "backend unavailable"}})
			return
		}
		f.renderOpt = r.URL.Query().Get("valueRenderOption")
		reply(&sheets.ValueRange{Values: f.grid})
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		var vr sheets.ValueRange
		_ = json.Unmarshal(body, &vr)
		f.written = &vr
		f.valueOpts = r.URL.Query().Get("valueInputOption")
		reply(&sheets.UpdateValuesResponse{})
	case strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.Unmarshal(body, &req)
		f.batches = append(f.batches, &req)
		reply(&sheets.BatchUpdateSpreadsheetResponse{})
	case strings.HasPrefix(path, "/v4/spreadsheets/") && r.Method == http.MethodGet:
		formats := make([]*sheets.ConditionalFormatRule, f.rules)
		for i := range formats {
			formats[i] = &sheets.ConditionalFormatRule{}
		}
		reply(&sheets.Spreadsheet{
			SpreadsheetId:  "ss1",
			SpreadsheetUrl: "https://docs.google.com/spreadsheets/d/ss1/edit",
			Sheets: []*sheets.Sheet{{
				Properties:         &sheets.SheetProperties{SheetId: 42, Title: "Tracker"},
				ConditionalFormats: formats,
			}},
		})
	case path == "/files" && r.Method == http.MethodGet:
		reply(&drive.FileList{Files: f.files})
	case path == "/v4/spreadsheets" && r.Method == http.MethodPost:
		var ss sheets.Spreadsheet
		_ = json.Unmarshal(body, &ss)
		f.createdSheets = append(f.createdSheets, ss.Properties.Title)
		reply(&sheets.Spreadsheet{SpreadsheetId: "ss1"})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func openFake(t *testing.T, fake *fakeGoogle) *GoogleSheets {
	t.Helper()
	store, err := OpenGoogleSheets(context.Background(), fakeConfig(t, fake, GoogleConfig{SpreadsheetID: "ss1"}))
	require.NoError(t, err)
	return store
}

// fakeConfig points cfg at a server backed by fake.
func fakeConfig(t *testing.T, fake *fakeGoogle, cfg GoogleConfig) GoogleConfig {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg.ClientOptions = []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithoutAuthentication(),
	}
	cfg.Retry = retry.Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func TestGoogleSheets_ReadWrite(t *testing.T) {
	fake := &fakeGoogle{
		grid: [][]interface{}{
			{"Day", "Date", "Video Title", "Video URL", "Video ID", "Alice"},
			{"Day 1", "2024-01-04", "Video v1", `=HYPERLINK("https://www.youtube.com/watch?v=v1", "Link")`, "v1", "done"},
			{"Day 1", "2024-01-04", "Stale", "", "stale", ""},
			{"Day 1", "2024-01-04", "Stale 2", "", "stale2", ""},
		},
		failReads: 1,
	}
	store := openFake(t, fake)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/ss1/edit", store.URL())

	table, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FORMULA", fake.renderOpt)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "done", table.Rows[0].Mark("Alice"))

	entries, review := schedule(t, 1)
	merged, _, err := Merge(entries, review, []string{"Alice"}, table)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), merged))

	require.NotNil(t, fake.written)
	assert.Equal(t, "USER_ENTERED", fake.valueOpts)
	// Header, one row, and two blanked stale rows.
	require.Len(t, fake.written.Values, 4)
	assert.Equal(t, "done", fake.written.Values[1][5])
	for _, cell := range fake.written.Values[3] {
		assert.Equal(t, "", cell)
	}
}

func TestGoogleSheets_ReadFailure(t *testing.T) {
	fake := &fakeGoogle{failReads: 10}
	store := openFake(t, fake)

	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, apperr.ErrTransientService)
	var svcErr *apperr.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "sheets", svcErr.Service)
	assert.Equal(t, "read", svcErr.Op)
}

func TestGoogleSheets_Format(t *testing.T) {
	fake := &fakeGoogle{rules: 4}
	store := openFake(t, fake)

	entries, review := schedule(t, 4)
	merged, _, err := Merge(entries, review, []string{"Alice"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Format(context.Background(), merged))

	require.Len(t, fake.batches, 1)
	reqs := fake.batches[0].Requests
	require.NotEmpty(t, reqs)
	assert.NotNil(t, reqs[0].DeleteConditionalFormatRule)
	assert.Equal(t, int64(3), reqs[0].DeleteConditionalFormatRule.Index)
	assert.Equal(t, int64(42), reqs[0].DeleteConditionalFormatRule.SheetId)
}

func TestGoogleSheets_ShareIsIdempotent(t *testing.T) {
	fake := &fakeGoogle{
		permissions: []*drive.Permission{{EmailAddress: "owner@example.com", Role: "owner"}},
	}
	store := openFake(t, fake)
	ctx := context.Background()

	require.NoError(t, store.Share(ctx, "friend@example.com"))
	require.NoError(t, store.Share(ctx, "Friend@Example.com"))
	require.NoError(t, store.Share(ctx, "owner@example.com"))

	require.Len(t, fake.created, 1)
	assert.Equal(t, "friend@example.com", fake.created[0].EmailAddress)
	assert.Equal(t, "writer", fake.created[0].Role)
	assert.Equal(t, "user", fake.created[0].Type)
}

func TestOpenGoogleSheets_ByName(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		fake := &fakeGoogle{files: []*drive.File{{Id: "ss1", Name: "Go Course"}}}
		store, err := OpenGoogleSheets(context.Background(), fakeConfig(t, fake, GoogleConfig{Name: "Go Course", NoCreate: true}))
		require.NoError(t, err)
		assert.Equal(t, "ss1", store.SpreadsheetID())
		assert.Empty(t, fake.createdSheets)
	})
	t.Run("created", func(t *testing.T) {
		fake := &fakeGoogle{}
		store, err := OpenGoogleSheets(context.Background(), fakeConfig(t, fake, GoogleConfig{Name: "Go Course"}))
		require.NoError(t, err)
		assert.Equal(t, "ss1", store.SpreadsheetID())
		assert.Equal(t, []string{"Go Course"}, fake.createdSheets)
	})
}

func TestOpenGoogleSheets_NoCreate(t *testing.T) {
	fake := &fakeGoogle{}
	store, err := OpenGoogleSheets(context.Background(), fakeConfig(t, fake, GoogleConfig{Name: "Go Course", NoCreate: true}))
	require.NoError(t, err)
	assert.Empty(t, fake.createdSheets)
	assert.Empty(t, store.SpreadsheetID())
	assert.Empty(t, store.URL())

	table, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)

	ctx := context.Background()
	assert.ErrorIs(t, store.Write(ctx, table), apperr.ErrConfiguration)
	assert.ErrorIs(t, store.Format(ctx, table), apperr.ErrConfiguration)
	assert.ErrorIs(t, store.Share(ctx, "friend@example.com"), apperr.ErrConfiguration)
	assert.Nil(t, fake.written)
	assert.Empty(t, fake.created)
}

func TestOpenGoogleSheets_RequiresTarget(t *testing.T) {
	_, err := OpenGoogleSheets(context.Background(), GoogleConfig{})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}
