package youtube

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytplan/internal/plan"
	"ytplan/internal/retry"
)

const apiPageSize = 50

// APISource implements PlaylistSource with the YouTube Data API v3.
type APISource struct {
	svc    *youtube.Service
	retry  retry.Config
	logger *slog.Logger
}

// APIConfig configures an APISource.
type APIConfig struct {
	APIKey string
	// ClientOptions are appended after the API key option.
	ClientOptions []option.ClientOption
	Retry         retry.Config
	Logger        *slog.Logger
}

// NewAPISource creates a client for the Data API.
func NewAPISource(ctx context.Context, cfg APIConfig) (*APISource, error) {
	if cfg.APIKey == "" {
		return nil, &FetchError{Source: "api", Err: ErrMissingAPIKey}
	}
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, &FetchError{Source: "api", Err: err}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &APISource{svc: svc, retry: cfg.Retry, logger: logger}, nil
}

// ListPlaylist pages through playlistItems.list in playlist order.
func (a *APISource) ListPlaylist(ctx context.Context, ref string) ([]plan.Item, error) {
	id, err := PlaylistID(ref)
	if err != nil {
		return nil, &FetchError{Source: "api", Playlist: ref, Err: err}
	}

	var (
		items   []plan.Item
		token   string
		skipped int
	)
	for {
		var resp *youtube.PlaylistItemListResponse
		err := retry.Do(ctx, a.retry, retry.GoogleAPI, func(ctx context.Context) error {
			call := a.svc.PlaylistItems.List([]string{"snippet", "status"}).
				PlaylistId(id).
				MaxResults(apiPageSize).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, &FetchError{Source: "api", Playlist: ref, Err: classifyAPIError(err)}
		}

		for _, it := range resp.Items {
			if it.Snippet == nil || it.Snippet.ResourceId == nil || it.Snippet.ResourceId.VideoId == "" {
				skipped++
				continue
			}
			if unavailable(it.Snippet.Title) || (it.Status != nil && it.Status.PrivacyStatus == "private") {
				skipped++
				continue
			}
			vid := it.Snippet.ResourceId.VideoId
			items = append(items, plan.Item{Title: it.Snippet.Title, ID: vid, URL: WatchURL(vid)})
		}

		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	if skipped > 0 {
		a.logger.Info("skipped unavailable playlist entries", "playlist", ref, "count", skipped)
	}
	if items == nil {
		items = []plan.Item{}
	}
	return items, nil
}

// classifyAPIError maps Data API status codes to sentinel errors.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		return errors.Join(ErrPlaylistNotFound, err)
	case http.StatusTooManyRequests:
		return errors.Join(ErrRateLimited, err)
	case http.StatusForbidden:
		for _, e := range apiErr.Errors {
			if e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded" {
				return errors.Join(ErrRateLimited, err)
			}
		}
	}
	return err
}
