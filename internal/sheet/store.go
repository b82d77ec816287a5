package sheet

import "context"

// Store persists the tracking table.
//
// Read and Write operate on the whole table; Write replaces the stored content
// in a single operation so that a failed run never leaves a half-merged sheet.
type Store interface {
	// Read returns the current table. A store that was never written returns
	// an empty table.
	Read(ctx context.Context) (*Table, error)

	// Write replaces the stored table.
	Write(ctx context.Context, t *Table) error

	// Share grants read/write access to email. Granting twice is a no-op.
	Share(ctx context.Context, email string) error

	// URL returns a link participants can open.
	URL() string
}

// Formatter is implemented by stores that can apply presentation rules
// (frozen header, status colours) after a write.
type Formatter interface {
	Format(ctx context.Context, t *Table) error
}
