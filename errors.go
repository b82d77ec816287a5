package ytplan

import (
	"ytplan/internal/apperr"
	"ytplan/internal/retry"
	"ytplan/internal/storage"
	"ytplan/internal/youtube"
)

// Error handling types exported for library users.
//
// Every failure returned by ytplan matches exactly one of the three category
// sentinels with errors.Is:
//
//	switch {
//	case errors.Is(err, ytplan.ErrConfiguration):
//		// fix the settings, do not retry
//	case errors.Is(err, ytplan.ErrTransientService):
//		// rerun later
//	case errors.Is(err, ytplan.ErrDataIntegrity):
//		// inspect the sheet, nothing was written
//	}
//
// Using errors.As() for context:
//
//	var svcErr *ytplan.ServiceError
//	if errors.As(err, &svcErr) {
//		fmt.Printf("%s %s failed: %v\n", svcErr.Service, svcErr.Op, svcErr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// ConfigError reports an invalid configuration value.
	ConfigError = apperr.ConfigError
	// ServiceError wraps a failed call to YouTube, Google or SMTP.
	ServiceError = apperr.ServiceError
	// IntegrityError reports inconsistent identifiers or a malformed sheet.
	IntegrityError = apperr.IntegrityError
	// FetchError wraps errors during playlist listing.
	FetchError = youtube.FetchError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors of the file store.
	StorageError = storage.StorageError
)

// Category sentinels.
var (
	ErrConfiguration    = apperr.ErrConfiguration
	ErrTransientService = apperr.ErrTransientService
	ErrDataIntegrity    = apperr.ErrDataIntegrity
)

// Sentinel errors exported from sub-packages.
var (
	// ErrPlaylistNotFound indicates the playlist does not exist or is private.
	ErrPlaylistNotFound = youtube.ErrPlaylistNotFound
	// ErrRateLimited indicates the operation was rate limited.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrNetworkTimeout indicates a network timeout occurred.
	ErrNetworkTimeout = youtube.ErrNetworkTimeout
	// ErrYtdlpNotInstalled indicates yt-dlp binary was not found.
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled

	// ErrStorageCorrupt indicates the store file cannot be decoded.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring the store lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable determines if an error should be retried.
// It returns false for configuration and data integrity errors.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}

// ExitCode maps an error to the exit status of the ytplan command.
func ExitCode(err error) int {
	return apperr.ExitCode(err)
}
