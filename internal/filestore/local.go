package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStore implements FileStore using the local filesystem.
type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) (*LocalFileStore, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &LocalFileStore{root: filepath.Clean(root)}, nil
}

// Root returns the directory blobs are stored under.
func (s *LocalFileStore) Root() string {
	return s.root
}

func (s *LocalFileStore) location(id string) string {
	if len(id) < 2 {
		return id
	}
	return filepath.ToSlash(filepath.Join(id[:2], id))
}

// resolve maps a location to an absolute path inside root.
func (s *LocalFileStore) resolve(location string) (string, error) {
	if location == "" || !fs.ValidPath(location) {
		return "", fmt.Errorf("invalid location %q: %w", location, ErrNotFound)
	}
	return filepath.Join(s.root, filepath.FromSlash(location)), nil
}

func validateID(id string) error {
	if id == "" {
		return errors.New("blob id cannot be empty")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("blob id %q contains invalid characters", id)
	}
	return nil
}

func (s *LocalFileStore) Put(ctx context.Context, id string, r io.Reader) (string, error) {
	if err := validateID(id); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	location := s.location(id)
	path := filepath.Join(s.root, filepath.FromSlash(location))

	// Create parent directory
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory %s: %w", ErrStorage, dir, err)
	}

	// Write to temporary file first
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp file: %w", ErrStorage, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Clean up if rename fails
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("%w: failed to write data: %w", ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: failed to sync temp file: %w", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close temp file: %w", ErrStorage, err)
	}

	// Atomically rename, replacing any previous blob with this id
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: failed to rename file: %w", ErrStorage, err)
	}

	return location, nil
}

func (s *LocalFileStore) Get(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("blob %s: %w", location, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("%w: failed to open file %s: %w", ErrStorage, location, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: failed to stat file %s: %w", ErrStorage, location, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("blob %s: %w", location, ErrNotFound)
	}
	return f, info.Size(), nil
}

func (s *LocalFileStore) Exists(ctx context.Context, location string) (bool, error) {
	path, err := s.resolve(location)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to stat file %s: %w", ErrStorage, location, err)
	}
	return info.Mode().IsRegular(), nil
}
