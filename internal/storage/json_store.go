package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ytplan/internal/sheet"
)

const lockTimeout = 5 * time.Second

// JSONStore implements sheet.Store using a single JSON file. The file is
// locked for the lifetime of the store.
type JSONStore struct {
	path     string
	lock     *FileLock
	data     *fileData
	mu       sync.RWMutex
	noCreate bool
}

var _ sheet.Store = (*JSONStore)(nil)

// Option configures a JSONStore.
type Option func(*JSONStore)

// WithoutCreate leaves a missing file alone on open. The store then reads as
// an empty table and the file is first created by Write or Share.
func WithoutCreate() Option {
	return func(s *JSONStore) { s.noCreate = true }
}

// NewJSONStore opens the store at path, creating an empty one if the file
// does not exist.
func NewJSONStore(ctx context.Context, path string, opts ...Option) (*JSONStore, error) {
	s := &JSONStore{
		path: path,
		lock: NewFileLock(path),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.noCreate {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			s.data = newFileData()
			return s, nil
		}
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	return s, nil
}

// acquire creates the parent directory and takes the file lock.
func (s *JSONStore) acquire(ctx context.Context) error {
	if s.lock.Held() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &StorageError{Op: "lock", Path: s.path, Err: err}
	}
	return s.lock.Lock(ctx, lockTimeout)
}

func (s *JSONStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newFileData()
			if s.noCreate {
				return nil
			}
			// Save immediately to catch permission errors early
			return s.save()
		}
		return &StorageError{Op: "read", Path: s.path, Err: err}
	}

	data := &fileData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return &StorageError{Op: "read", Path: s.path, Err: fmt.Errorf("%w: %v", ErrStorageCorrupt, err)}
	}
	if data.Version != schemaVersion {
		return &StorageError{Op: "read", Path: s.path,
			Err: fmt.Errorf("%w: unsupported version %q", ErrStorageCorrupt, data.Version)}
	}
	if data.Table == nil {
		data.Table = &sheet.Table{}
	}
	s.data = data
	return nil
}

func (s *JSONStore) save() error {
	s.data.UpdatedAt = time.Now().UTC()

	err := writeAtomic(s.path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s.data)
	})
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// Read returns a copy of the stored table.
func (s *JSONStore) Read(ctx context.Context) (*sheet.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: ErrClosed}
	}
	return copyTable(s.data.Table), nil
}

// Write replaces the stored table. The file is unchanged when the write fails.
func (s *JSONStore) Write(ctx context.Context, t *sheet.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("storage: write nil table")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return &StorageError{Op: "write", Path: s.path, Err: ErrClosed}
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	prev := s.data.Table
	s.data.Table = copyTable(t)
	if err := s.save(); err != nil {
		s.data.Table = prev
		return err
	}
	return nil
}

// Share records email as having access. Recording the same address twice is
// a no-op.
func (s *JSONStore) Share(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return &StorageError{Op: "write", Path: s.path, Err: ErrClosed}
	}
	for _, sh := range s.data.SharedWith {
		if strings.EqualFold(sh.Email, email) {
			return nil
		}
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	prev := s.data.SharedWith
	s.data.SharedWith = append(append([]Share(nil), prev...), Share{Email: email, SharedAt: time.Now().UTC()})
	if err := s.save(); err != nil {
		s.data.SharedWith = prev
		return err
	}
	return nil
}

// SharedWith returns the recorded addresses in grant order.
func (s *JSONStore) SharedWith() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil
	}
	emails := make([]string, len(s.data.SharedWith))
	for i, sh := range s.data.SharedWith {
		emails[i] = sh.Email
	}
	return emails
}

// URL returns a file:// link to the store.
func (s *JSONStore) URL() string {
	path := s.path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return s.lock.Unlock()
}

func copyTable(t *sheet.Table) *sheet.Table {
	out := &sheet.Table{
		Participants: append([]string(nil), t.Participants...),
		Rows:         make([]sheet.Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		marks := make(map[string]string, len(r.Marks))
		for p, v := range r.Marks {
			marks[p] = v
		}
		r.Marks = marks
		out.Rows[i] = r
	}
	return out
}
