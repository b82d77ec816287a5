// Package youtube lists the videos of a YouTube playlist.
package youtube

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
)

// Sentinel errors for playlist listing.
var (
	ErrPlaylistNotFound  = errors.New("youtube: playlist not found")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrInvalidPlaylist   = errors.New("youtube: invalid playlist reference")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
	ErrMissingAPIKey     = errors.New("youtube: api key required")
)

// PlaylistSource returns the videos of a playlist in playlist order.
type PlaylistSource interface {
	// ListPlaylist accepts a playlist URL or a bare playlist ID.
	ListPlaylist(ctx context.Context, ref string) ([]plan.Item, error)
}

// FetchError wraps errors with context about the listing operation.
type FetchError struct {
	Source   string // "ytdlp" or "api"
	Playlist string
	Err      error
}

func (e *FetchError) Error() string {
	return "youtube: " + e.Source + " listing " + e.Playlist + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is classifies the failure: a bad reference or a missing tool is a
// configuration problem, anything else but cancellation is transient.
func (e *FetchError) Is(target error) bool {
	switch {
	case errors.Is(e.Err, ErrPlaylistNotFound),
		errors.Is(e.Err, ErrInvalidPlaylist),
		errors.Is(e.Err, ErrYtdlpNotInstalled),
		errors.Is(e.Err, ErrMissingAPIKey):
		return target == apperr.ErrConfiguration
	case errors.Is(e.Err, context.Canceled):
		return false
	default:
		return target == apperr.ErrTransientService
	}
}

// WatchURL returns the canonical link of a video.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

var playlistIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

// PlaylistID extracts the list= parameter of a playlist URL, or returns ref
// when it already is an ID.
func PlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if playlistIDRegex.MatchString(ref) {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", ErrInvalidPlaylist
	}
	if id := u.Query().Get("list"); playlistIDRegex.MatchString(id) {
		return id, nil
	}
	return "", ErrInvalidPlaylist
}

// PlaylistURL returns ref as a URL yt-dlp understands.
func PlaylistURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if playlistIDRegex.MatchString(ref) {
		return "https://www.youtube.com/playlist?list=" + ref
	}
	return ref
}

// unavailableTitles mark entries YouTube keeps in a playlist after the video
// was made private or removed.
var unavailableTitles = map[string]bool{
	"[Private video]": true,
	"[Deleted video]": true,
	"Private video":   true,
	"Deleted video":   true,
}

func unavailable(title string) bool {
	return unavailableTitles[strings.TrimSpace(title)]
}
