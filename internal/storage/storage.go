package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore is the object-storage collaborator for uploaded documents.
// Implementations must make Delete safe to call on keys that were never
// written, since it runs as compensating cleanup.
type BlobStore interface {
	// Save writes the blob under key and returns a URL it can be fetched at
	Save(key string, data []byte) (string, error)
	Delete(key string) error
}

// DiskStore keeps blobs on the local filesystem under a base directory and
// serves them from a public URL prefix.
type DiskStore struct {
	baseDir   string
	publicURL string
}

func NewDiskStore(baseDir, publicURL string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &DiskStore{baseDir: baseDir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *DiskStore) Save(key string, data []byte) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return s.publicURL + "/files/" + key, nil
}

func (s *DiskStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
