package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// fsStorage is the local filesystem implementation of the storage
// collaborator. Buckets are directories below the root; URLs use the
// file scheme so callers can treat them like any other access URL.
type fsStorage struct {
	root   string
	logger interfaces.Logger
}

// NewFsStorage creates filesystem-backed storage rooted at root
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewFsStorage(root string, logger interfaces.Logger) *fsStorage {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &fsStorage{root: root, logger: logger}
}

// Upload stores data under root/bucket/path and returns its file URL
func (g *fsStorage) Upload(_ context.Context, bucket, path string, data []byte) (string, error) {
	dest, err := g.resolve(bucket, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0640); err != nil {
		return "", fmt.Errorf("failed to store %s/%s: %w", bucket, path, err)
	}
	g.logger.Debug("stored object", interfaces.F("bucket", bucket), interfaces.F("path", path), interfaces.F("bytes", len(data)))
	return "file://" + dest, nil
}

// Download retrieves the bytes stored under root/bucket/path
func (g *fsStorage) Download(_ context.Context, bucket, path string) ([]byte, error) {
	src, err := g.resolve(bucket, path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: Path is confined to the storage root by resolve
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// resolve joins bucket/path below the root and rejects escapes
func (g *fsStorage) resolve(bucket, path string) (string, error) {
	dest := filepath.Join(g.root, bucket, filepath.FromSlash(path))
	rel, err := filepath.Rel(g.root, dest)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || (len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage path %q escapes the storage root", path)
	}
	return dest, nil
}
