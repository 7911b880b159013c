// Package storage provides file storage scoped by processing session.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations.
// Files are grouped by scope, which is a session identifier; scopes are
// independent and a caller never reaches across them.
type Storage interface {
	// Upload stores a file under a scope and returns its metadata
	Upload(ctx context.Context, scope string, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, scope string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, scope string, fileID uuid.UUID) error

	// List returns all files in a scope
	List(ctx context.Context, scope string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, scope string, fileID uuid.UUID) (*FileInfo, error)

	// FilePath returns a local filesystem path for a stored file.
	// PDF page operations work on paths rather than streams.
	FilePath(ctx context.Context, scope string, fileID uuid.UUID) (string, error)

	// DeleteScope removes a scope and everything under it
	DeleteScope(ctx context.Context, scope string) error
}
