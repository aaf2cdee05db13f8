package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore persists videos under a directory served by the HTTP layer at
// /files. It is the default when no object storage is configured.
type LocalStore struct {
	baseDir string
	baseURL string
}

func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating local store dir: %w", err)
	}
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory the HTTP layer should serve at /files.
func (s *LocalStore) Dir() string {
	return s.baseDir
}

func (s *LocalStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	dest := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	return s.baseURL + "/files/" + path, nil
}
