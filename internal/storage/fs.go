package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/filestodata/filestodata/internal/common"
)

// FSStore is a filesystem-backed object store rooted at a single directory.
type FSStore struct {
	root   string
	logger *slog.Logger
}

func NewFSStore(root string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSStore{root: abs, logger: logger}, nil
}

// resolve maps an object path to a location under the root, rejecting
// anything that would escape it.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", common.NewAppError("STORAGE_PATH", fmt.Sprintf("invalid object path %q", path), common.ErrInvalidInput)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Upload(_ context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("write object %q: %w", path, err)
	}
	s.logger.Debug("storage.upload.ok", "path", path, "bytes", len(content))
	return nil
}

func (s *FSStore) Download(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewAppError("STORAGE_OBJECT", fmt.Sprintf("object %q", path), common.ErrNotFound)
		}
		return nil, fmt.Errorf("read object %q: %w", path, err)
	}
	return b, nil
}
