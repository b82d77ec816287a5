package storage

import (
	"time"

	"ytplan/internal/sheet"
)

const schemaVersion = "1.0"

// fileData is the top-level JSON document.
type fileData struct {
	Version    string       `json:"version"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Table      *sheet.Table `json:"table"`
	SharedWith []Share      `json:"shared_with,omitempty"`
}

// Share records an access grant.
type Share struct {
	Email    string    `json:"email"`
	SharedAt time.Time `json:"shared_at"`
}

func newFileData() *fileData {
	return &fileData{
		Version: schemaVersion,
		Table:   &sheet.Table{},
	}
}
