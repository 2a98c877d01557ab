// Package storage holds the metadata index of uploaded files.
//
// A lookup that finds nothing is not an error: Find* methods return
// ok == false and a nil error. Errors are reserved for I/O failures.
package storage

import (
	"context"

	"dedupstore/internal/models"
)

// Index stores file records by id with a secondary lookup by content hash.
type Index interface {
	FindByID(ctx context.Context, id string) (models.FileRecord, bool, error)

	// FindByHash returns a finalized record with the given content hash.
	// Records whose location is not set yet are never returned.
	FindByHash(ctx context.Context, hash string) (models.FileRecord, bool, error)

	// Create assigns an id and creation time and persists the record
	// with an empty location.
	Create(ctx context.Context, record models.FileRecord) (models.FileRecord, error)

	// Update persists the full record. The record must exist.
	Update(ctx context.Context, record models.FileRecord) (models.FileRecord, error)
}

// Lister enumerates every record, finalized or not.
type Lister interface {
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
}

// IndexLister is an Index that can also enumerate its records.
type IndexLister interface {
	Index
	Lister
}
