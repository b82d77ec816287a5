package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytplan/internal/config"
	"ytplan/internal/plan"
	"ytplan/internal/remind"
	"ytplan/internal/storage"
	"ytplan/internal/youtube"
)

type fakeSource struct{ items []plan.Item }

func (f *fakeSource) ListPlaylist(ctx context.Context, ref string) ([]plan.Item, error) {
	return f.items, nil
}

type recordingNotifier struct{ sent []remind.Message }

func (r *recordingNotifier) Send(ctx context.Context, msg remind.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type harness struct {
	source   *fakeSource
	notifier *recordingNotifier
	store    string
}

// setup points the environment at a file store in a scratch directory.
func setup(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	h := &harness{
		source:   &fakeSource{},
		notifier: &recordingNotifier{},
		store:    filepath.Join(dir, "progress.json"),
	}
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("vid%08d", i)
		h.source.items = append(h.source.items, plan.Item{
			Title: fmt.Sprintf("Lesson %d", i), ID: id, URL: youtube.WatchURL(id),
		})
	}

	env := map[string]string{
		"STORE":          "file",
		"STORE_PATH":     h.store,
		"SOURCE":         "ytdlp",
		"PLAYLIST_URL":   "https://www.youtube.com/playlist?list=PLtest123456",
		"PLAYLIST_NAME":  "Go Course",
		"START_DATE":     "2024-01-01",
		"PARTICIPANTS":   "Alice=alice@example.com,Bob=bob@example.com",
		"DAILY_CAPACITY": "3",
		"SHARE_EMAIL":    "",
		"DRY_RUN":        "false",
		"EMAIL_ENABLED":  "true",
		"SMTP_EMAIL":     "bot@example.com",
		"SMTP_PASSWORD":  "secret",
		"GRACE_DAYS":     "0",
		"TIMEZONE":       "UTC",
		"LOG_LEVEL":      "error",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.newSource = func(context.Context, *config.Config, *slog.Logger) (youtube.PlaylistSource, error) {
		return h.source, nil
	}
	a.newNotifier = func(*config.Config) remind.Notifier { return h.notifier }
	a.now = func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }

	code = execute(context.Background(), a, append([]string{"--color", "never"}, args...))
	return code, out.String(), errOut.String()
}

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--help"}, &out, &errOut)
	assert.Equal(t, 0, code)
	for _, sub := range []string{"publish", "remind", "status", "plan"} {
		assert.Contains(t, out.String(), sub)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"nonexistent-command"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Error:")
}

func TestRun_Plan(t *testing.T) {
	h := setup(t)
	code, out, errOut := h.run(t, "plan")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Day 3")
	assert.Contains(t, out, "Lesson 7")
	assert.Contains(t, out, "2024-01-03")
}

func TestRun_PublishRemindStatus(t *testing.T) {
	h := setup(t)

	code, out, errOut := h.run(t, "publish", "--dry-run")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Lesson 1")
	assert.NoFileExists(t, h.store)

	code, out, errOut = h.run(t, "publish")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "[OK] published 7 videos (7 added")
	assertStoredRows(t, h.store, 7)

	// Nobody has watched anything by Tuesday.
	code, out, errOut = h.run(t, "remind")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "sent 2 reminders")
	assert.Contains(t, errOut, "Alice is 6 behind")
	require.Len(t, h.notifier.sent, 2)
	assert.Equal(t, "REMINDER - Go Course - Missed Deadline", h.notifier.sent[0].Subject)

	code, out, errOut = h.run(t, "remind", "--dry-run", "--today", "2024-01-03")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "dry run: 2 reminders rendered, none sent")
	assert.Len(t, h.notifier.sent, 2)

	code, out, errOut = h.run(t, "status", "--today", "2024-01-01")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Progress as of 2024-01-01")
	assert.Contains(t, out, "Participant")
	assert.Contains(t, out, "Bob")
}

func TestRun_ReadOnlyCommandsCreateNothing(t *testing.T) {
	h := setup(t)
	t.Setenv("STORE_PATH", filepath.Join(filepath.Dir(h.store), "data", "progress.json"))

	for _, args := range [][]string{
		{"publish", "--dry-run"},
		{"status"},
		{"remind", "--dry-run"},
		{"remind"},
	} {
		code, _, errOut := h.run(t, args...)
		require.Equal(t, 0, code, "%v: %s", args, errOut)
	}
	assert.NoDirExists(t, filepath.Join(filepath.Dir(h.store), "data"))
	assert.Empty(t, h.notifier.sent)

	code, _, errOut := h.run(t, "publish")
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(filepath.Dir(h.store), "data", "progress.json"))
}

func TestRun_ExitCodes(t *testing.T) {
	h := setup(t)

	t.Run("missing playlist", func(t *testing.T) {
		t.Setenv("PLAYLIST_URL", "")
		code, _, errOut := h.run(t, "publish")
		assert.Equal(t, 2, code)
		assert.Contains(t, errOut, "playlist_url")
	})
	t.Run("bad boolean", func(t *testing.T) {
		t.Setenv("EMAIL_ENABLED", "sometimes")
		code, _, _ := h.run(t, "remind")
		assert.Equal(t, 2, code)
	})
	t.Run("bad today", func(t *testing.T) {
		code, _, _ := h.run(t, "remind", "--today", "tomorrow")
		assert.Equal(t, 2, code)
	})
	t.Run("corrupt store", func(t *testing.T) {
		require.NoError(t, os.WriteFile(h.store, []byte("{not json"), 0o600))
		code, _, _ := h.run(t, "status")
		assert.Equal(t, 4, code)
	})
}

func assertStoredRows(t *testing.T, path string, want int) {
	t.Helper()
	store, err := storage.NewJSONStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	table, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.StudyRows(), want)
}
