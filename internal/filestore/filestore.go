package filestore

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrStorage  = errors.New("blob storage failure")
)

// FileStore persists blob content under caller supplied ids.
type FileStore interface {
	// Put writes the content of r under id and returns its location.
	// An existing blob with the same id is replaced atomically.
	Put(ctx context.Context, id string, r io.Reader) (string, error)

	// Get opens the blob at location and returns it with its size in bytes.
	Get(ctx context.Context, location string) (io.ReadCloser, int64, error)

	// Exists reports whether a blob is present at location without opening it.
	Exists(ctx context.Context, location string) (bool, error)
}
