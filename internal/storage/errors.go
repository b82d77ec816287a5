// Package storage keeps the tracking table in a local JSON file.
//
// The file store implements sheet.Store for offline runs: publish and remind
// behave exactly as against a spreadsheet, shares are only recorded.
package storage

import (
	"errors"
	"fmt"

	"ytplan/internal/apperr"
)

var (
	// ErrStorageCorrupt indicates the file could not be decoded.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates another process holds the store.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("storage: store is closed")
)

// StorageError wraps a failed file operation.
// Use errors.As() to get the operation and path:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("failed to %s %s: %v\n", storErr.Op, storErr.Path, storErr.Err)
//	}
type StorageError struct {
	Op   string // "lock", "read", "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is maps a corrupt file to a data integrity error and every other failure
// to a transient service error.
func (e *StorageError) Is(target error) bool {
	if errors.Is(e.Err, ErrStorageCorrupt) {
		return target == apperr.ErrDataIntegrity
	}
	return target == apperr.ErrTransientService
}
