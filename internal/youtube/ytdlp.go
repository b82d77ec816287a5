package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ytplan/internal/plan"
	"ytplan/internal/retry"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 5 * time.Minute
)

// YtdlpSource implements PlaylistSource using yt-dlp as a subprocess.
type YtdlpSource struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds a single yt-dlp run. Defaults to 5 minutes.
	Timeout time.Duration

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	// RetryConfig holds retry behavior configuration.
	RetryConfig *retry.Config

	Logger *slog.Logger
}

// NewYtdlpSource creates a yt-dlp based playlist source.
func NewYtdlpSource() *YtdlpSource {
	cfg := retry.DefaultConfig()
	return &YtdlpSource{
		Path:        defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		RetryConfig: &cfg,
	}
}

// ListPlaylist fetches the playlist entries with a flat, metadata-only listing.
func (y *YtdlpSource) ListPlaylist(ctx context.Context, ref string) ([]plan.Item, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, &FetchError{Source: "ytdlp", Playlist: ref, Err: ErrInvalidPlaylist}
	}
	if err := y.checkInstalled(ctx); err != nil {
		return nil, err
	}

	cfg := retry.DefaultConfig()
	if y.RetryConfig != nil {
		cfg = *y.RetryConfig
	}

	var items []plan.Item
	err := retry.Do(ctx, cfg, ytdlpErrorClassifier, func(ctx context.Context) error {
		args := []string{
			"--flat-playlist",
			"-J", // JSON output
			"--no-warnings",
		}
		args = append(args, y.ExtraArgs...)
		args = append(args, PlaylistURL(ref))

		timeout := y.Timeout
		if timeout == 0 {
			timeout = defaultYtdlpTimeout
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cmdCtx, y.path(), args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return &FetchError{Source: "ytdlp", Playlist: ref, Err: ctx.Err()}
			}
			if cmdCtx.Err() == context.DeadlineExceeded {
				return &FetchError{Source: "ytdlp", Playlist: ref, Err: ErrNetworkTimeout}
			}
			return &FetchError{Source: "ytdlp", Playlist: ref, Err: classifyStderr(err, stderr.String())}
		}

		parsed, skipped, err := parseYtdlpOutput(stdout.Bytes())
		if err != nil {
			return &FetchError{Source: "ytdlp", Playlist: ref, Err: err}
		}
		if skipped > 0 {
			y.logger().Info("skipped unavailable playlist entries", "playlist", ref, "count", skipped)
		}
		items = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// classifyStderr maps common yt-dlp failure messages to sentinel errors.
func classifyStderr(runErr error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "unsupported url"):
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, strings.TrimSpace(stderr))
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "timed out"):
		return ErrNetworkTimeout
	}
	return fmt.Errorf("yt-dlp failed: %w: %s", runErr, strings.TrimSpace(stderr))
}

// checkInstalled verifies that yt-dlp is available.
func (y *YtdlpSource) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return &FetchError{Source: "ytdlp", Playlist: y.path(), Err: ErrYtdlpNotInstalled}
	}
	return nil
}

func (y *YtdlpSource) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

func (y *YtdlpSource) logger() *slog.Logger {
	if y.Logger != nil {
		return y.Logger
	}
	return slog.Default()
}

// ytdlpPlaylist represents yt-dlp's JSON output for a playlist.
type ytdlpPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Type    string       `json:"_type"`
	Entries []ytdlpEntry `json:"entries"`
}

// ytdlpEntry represents a single flat playlist entry.
type ytdlpEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// parseYtdlpOutput converts yt-dlp's JSON output into items, dropping
// unavailable entries. It returns the number of dropped entries.
func parseYtdlpOutput(data []byte) ([]plan.Item, int, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, 0, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	items := make([]plan.Item, 0, len(playlist.Entries))
	skipped := 0
	for _, entry := range playlist.Entries {
		if entry.ID == "" || unavailable(entry.Title) {
			skipped++
			continue
		}
		items = append(items, plan.Item{
			Title: strings.TrimSpace(entry.Title),
			ID:    entry.ID,
			URL:   WatchURL(entry.ID),
		})
	}
	return items, skipped, nil
}

// ytdlpErrorClassifier determines if a yt-dlp error is retryable.
func ytdlpErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	switch {
	case errors.Is(err, ErrPlaylistNotFound),
		errors.Is(err, ErrYtdlpNotInstalled),
		errors.Is(err, ErrInvalidPlaylist),
		errors.Is(err, context.Canceled):
		return false
	}
	// Retryable: rate limit, timeout, network errors, garbled output
	return true
}
