package youtube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"ytplan/internal/apperr"
	"ytplan/internal/retry"
)

func TestParseYtdlpOutput(t *testing.T) {
	items, skipped, err := parseYtdlpOutput([]byte(sampleYtdlpOutput))
	if err != nil {
		t.Fatalf("parseYtdlpOutput() error = %v", err)
	}
	if skipped != 2 {
		t.Errorf("parseYtdlpOutput() skipped = %d, want 2", skipped)
	}
	if len(items) != 3 {
		t.Fatalf("parseYtdlpOutput() len = %d, want 3", len(items))
	}

	want := []string{"dQw4w9WgXcQ", "test123abc", "z9y8x7w6v5u"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
		if items[i].URL != "https://www.youtube.com/watch?v="+id {
			t.Errorf("items[%d].URL = %q", i, items[i].URL)
		}
	}
	if items[0].Title != "Lecture 1: Introduction" {
		t.Errorf("items[0].Title = %q, want %q", items[0].Title, "Lecture 1: Introduction")
	}
}

func TestParseYtdlpOutput_Invalid(t *testing.T) {
	if _, _, err := parseYtdlpOutput([]byte("ERROR: not json")); err == nil {
		t.Error("parseYtdlpOutput() error = nil, want parse error")
	}
}

func TestClassifyStderr(t *testing.T) {
	runErr := errors.New("exit status 1")
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"missing playlist", "ERROR: [youtube:tab] PLxyz: The playlist does not exist.", ErrPlaylistNotFound},
		{"http 404", "ERROR: HTTP Error 404: Not Found", ErrPlaylistNotFound},
		{"rate limited", "ERROR: HTTP Error 429: Too Many Requests", ErrRateLimited},
		{"timeout", "ERROR: Read timed out.", ErrNetworkTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyStderr(runErr, tt.stderr)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyStderr(%q) = %v, want %v", tt.stderr, got, tt.want)
			}
		})
	}

	other := classifyStderr(runErr, "ERROR: something else")
	if !errors.Is(other, runErr) {
		t.Errorf("classifyStderr() = %v, want wrapped run error", other)
	}
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"PLBKadB95sF44dQ6kit8V1t-_a7mNYVd6E", "PLBKadB95sF44dQ6kit8V1t-_a7mNYVd6E", false},
		{"https://www.youtube.com/playlist?list=PLBKadB95sF44dQ6kit8V1t-_a7mNYVd6E", "PLBKadB95sF44dQ6kit8V1t-_a7mNYVd6E", false},
		{"https://www.youtube.com/watch?v=abc&list=PL1234567890", "PL1234567890", false},
		{"https://www.youtube.com/watch?v=abc", "", true},
		{"not a playlist", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := PlaylistID(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("PlaylistID(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}

	if got := PlaylistURL("PL1234567890"); got != "https://www.youtube.com/playlist?list=PL1234567890" {
		t.Errorf("PlaylistURL() = %q", got)
	}
}

func TestFetchError_Classification(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{ErrPlaylistNotFound, apperr.ErrConfiguration},
		{ErrYtdlpNotInstalled, apperr.ErrConfiguration},
		{ErrRateLimited, apperr.ErrTransientService},
		{ErrNetworkTimeout, apperr.ErrTransientService},
		{errors.New("connection reset"), apperr.ErrTransientService},
	}
	for _, tt := range tests {
		err := &FetchError{Source: "ytdlp", Playlist: "PL1", Err: tt.err}
		if !errors.Is(err, tt.want) {
			t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
		}
		if apperr.ExitCode(err) == 1 {
			t.Errorf("ExitCode(%v) = 1, want a classified code", err)
		}
	}

	canceled := &FetchError{Source: "ytdlp", Err: context.Canceled}
	if errors.Is(canceled, apperr.ErrTransientService) {
		t.Error("canceled fetch classified as transient")
	}
}

func TestYtdlpSource_NotInstalled(t *testing.T) {
	source := &YtdlpSource{Path: "/nonexistent/path/to/yt-dlp"}

	_, err := source.ListPlaylist(context.Background(), "PL1234567890")
	if !errors.Is(err, ErrYtdlpNotInstalled) {
		t.Errorf("ListPlaylist() error = %v, want ErrYtdlpNotInstalled", err)
	}
}

// fakeYtdlp writes a shell script standing in for yt-dlp.
func fakeYtdlp(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then\n    echo \"2024.01.01\"\n    exit 0\nfi\n" + body
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to create fake yt-dlp: %v", err)
	}
	return path
}

func TestYtdlpSource_ListPlaylist(t *testing.T) {
	path := fakeYtdlp(t, "cat << 'EOF'\n"+sampleYtdlpOutput+"\nEOF\n")
	source := &YtdlpSource{Path: path, Timeout: 30 * time.Second}

	items, err := source.ListPlaylist(context.Background(), "https://www.youtube.com/playlist?list=PL1234567890")
	if err != nil {
		t.Fatalf("ListPlaylist() error = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("ListPlaylist() len = %d, want 3", len(items))
	}
}

func TestYtdlpSource_NotFoundIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "calls")
	path := fakeYtdlp(t, "echo run >> "+counter+"\necho 'ERROR: The playlist does not exist.' >&2\nexit 1\n")
	source := &YtdlpSource{
		Path:        path,
		RetryConfig: &retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	}

	_, err := source.ListPlaylist(context.Background(), "PL1234567890")
	if !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("ListPlaylist() error = %v, want ErrPlaylistNotFound", err)
	}
	data, _ := os.ReadFile(counter)
	if n := strings.Count(string(data), "run"); n != 1 {
		t.Errorf("yt-dlp ran %d times, want 1", n)
	}
}

func TestYtdlpSource_RateLimitIsRetried(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "calls")
	path := fakeYtdlp(t, "echo run >> "+counter+"\necho 'ERROR: HTTP Error 429: Too Many Requests' >&2\nexit 1\n")
	source := &YtdlpSource{
		Path:        path,
		RetryConfig: &retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	}

	_, err := source.ListPlaylist(context.Background(), "PL1234567890")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("ListPlaylist() error = %v, want ErrRateLimited", err)
	}
	if !errors.Is(err, apperr.ErrTransientService) {
		t.Errorf("ListPlaylist() error = %v, want transient service error", err)
	}
	data, _ := os.ReadFile(counter)
	if n := strings.Count(string(data), "run"); n != 3 {
		t.Errorf("yt-dlp ran %d times, want 3", n)
	}
}

const sampleYtdlpOutput = `{
  "_type": "playlist",
  "id": "PL1234567890",
  "title": "Go Course",
  "entries": [
    {"_type": "url", "id": "dQw4w9WgXcQ", "title": "Lecture 1: Introduction", "url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
    {"_type": "url", "id": "priv0000001", "title": "[Private video]", "url": "https://www.youtube.com/watch?v=priv0000001"},
    {"_type": "url", "id": "test123abc", "title": "Lecture 2: Types", "url": "https://www.youtube.com/watch?v=test123abc"},
    {"_type": "url", "id": "del00000001", "title": "[Deleted video]", "url": "https://www.youtube.com/watch?v=del00000001"},
    {"_type": "url", "id": "z9y8x7w6v5u", "title": "Lecture 3: Concurrency ", "url": "https://www.youtube.com/watch?v=z9y8x7w6v5u"}
  ]
}`
