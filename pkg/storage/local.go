package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Upload stores a file and returns its metadata
func (s *LocalStorage) Upload(ctx context.Context, scope string, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()

	scopeDir := filepath.Join(s.basePath, scope)
	if err := os.MkdirAll(scopeDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scope directory: %w", err)
	}

	// Sanitize filename and add UUID prefix for uniqueness
	safeFilename := sanitizeFilename(filename)
	storedFilename := fmt.Sprintf("%s_%s", fileID.String()[:8], safeFilename)
	filePath := filepath.Join(scopeDir, storedFilename)

	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath) // Cleanup on error
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        storedFilename,
		CreatedAt:   time.Now(),
	}

	if err := s.saveMetadata(scope, fileID, info); err != nil {
		os.Remove(filePath) // Cleanup on error
		return nil, err
	}

	return info, nil
}

// Download retrieves a file by its ID
func (s *LocalStorage) Download(ctx context.Context, scope string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, scope, fileID)
	if err != nil {
		return nil, nil, err
	}

	filePath := filepath.Join(s.basePath, scope, info.Path)
	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, info, nil
}

// Delete removes a file by its ID
func (s *LocalStorage) Delete(ctx context.Context, scope string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, scope, fileID)
	if err != nil {
		return err
	}

	filePath := filepath.Join(s.basePath, scope, info.Path)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	metaPath := filepath.Join(s.basePath, scope, ".meta", fileID.String()+".json")
	os.Remove(metaPath)

	return nil
}

// List returns all files in a scope
func (s *LocalStorage) List(ctx context.Context, scope string) ([]*FileInfo, error) {
	metaDir := filepath.Join(s.basePath, scope, ".meta")
	if _, err := os.Stat(metaDir); os.IsNotExist(err) {
		return []*FileInfo{}, nil
	}

	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(metaDir, entry.Name()))
		if err != nil {
			continue
		}

		var info FileInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		files = append(files, &info)
	}

	return files, nil
}

// GetInfo returns metadata for a file without downloading it
func (s *LocalStorage) GetInfo(ctx context.Context, scope string, fileID uuid.UUID) (*FileInfo, error) {
	metaPath := filepath.Join(s.basePath, scope, ".meta", fileID.String()+".json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", fileID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &info, nil
}

// FilePath returns the absolute path of a stored file
func (s *LocalStorage) FilePath(ctx context.Context, scope string, fileID uuid.UUID) (string, error) {
	info, err := s.GetInfo(ctx, scope, fileID)
	if err != nil {
		return "", err
	}
	return filepath.Abs(filepath.Join(s.basePath, scope, info.Path))
}

// DeleteScope removes a scope directory and all files in it
func (s *LocalStorage) DeleteScope(ctx context.Context, scope string) error {
	if scope == "" || strings.Contains(scope, "..") || strings.ContainsRune(scope, os.PathSeparator) {
		return fmt.Errorf("invalid scope: %q", scope)
	}
	return os.RemoveAll(filepath.Join(s.basePath, scope))
}

// BasePath returns the storage root, used by the retention sweeper
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func (s *LocalStorage) saveMetadata(scope string, fileID uuid.UUID, info *FileInfo) error {
	metaDir := filepath.Join(s.basePath, scope, ".meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaPath := filepath.Join(metaDir, fileID.String()+".json")
	if err := os.WriteFile(metaPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// sanitizeFilename removes path separators and control characters so a
// client-supplied name can never escape the scope directory
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}
