// Package files coordinates the metadata index and the blob store.
//
// Upload order is fixed: hash the stream, look the hash up, create the
// record, write the blob, set the record location. A failure after the
// record is created leaves it without a location; Audit reports such
// records and nothing deletes them.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"

	"dedupstore/internal/content"
	"dedupstore/internal/filestore"
	"dedupstore/internal/models"
	"dedupstore/internal/storage"
)

type Config struct {
	// SpoolDir holds temporary copies of non-seekable uploads. Empty means os.TempDir().
	SpoolDir string
	Logger   *slog.Logger
}

type FileService struct {
	index    storage.Index
	blobs    filestore.FileStore
	spoolDir string
	log      *slog.Logger
}

func NewFileService(index storage.Index, blobs filestore.FileStore, cfg Config) *FileService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{
		index:    index,
		blobs:    blobs,
		spoolDir: cfg.SpoolDir,
		log:      logger,
	}
}

// Upload stores the content of r under name, reusing an existing record
// when identical content was uploaded before.
func (s *FileService) Upload(ctx context.Context, name string, r io.Reader) (models.FileRecord, error) {
	if err := content.ValidateFilename(name); err != nil {
		return models.FileRecord{}, models.Client(fmt.Errorf("invalid filename: %w", err))
	}

	src, err := s.hash(r)
	if err != nil {
		s.log.Error("failed to hash upload", "name", name, "error", err)
		return models.FileRecord{}, models.Server(err)
	}
	defer src.release()

	existing, ok, err := s.index.FindByHash(ctx, src.hash)
	if err != nil {
		return models.FileRecord{}, models.Server(fmt.Errorf("find by hash: %w", err))
	}
	if ok {
		s.log.Info("file with same contents already exists", "id", existing.ID, "hash", src.hash)
		return existing, nil
	}

	record, err := s.index.Create(ctx, models.FileRecord{
		Name:     name,
		Hash:     src.hash,
		Size:     src.size,
		MimeType: src.mimeType,
	})
	if err != nil {
		return models.FileRecord{}, models.Server(fmt.Errorf("create file record: %w", err))
	}
	s.log.Info("saved new file entity", "id", record.ID, "hash", record.Hash)

	location, err := s.blobs.Put(ctx, record.ID, src.body)
	if err != nil {
		// The record stays without a location; see Audit.
		s.log.Error("failed to save blob", "id", record.ID, "error", err)
		return models.FileRecord{}, models.Server(fmt.Errorf("save blob %s: %w", record.ID, err))
	}

	record.Location = location
	record, err = s.index.Update(ctx, record)
	if err != nil {
		s.log.Error("failed to finalize file record", "id", record.ID, "error", err)
		return models.FileRecord{}, models.Server(fmt.Errorf("update file record: %w", err))
	}
	return record, nil
}

// Lookup returns the record for id.
func (s *FileService) Lookup(ctx context.Context, id string) (models.FileRecord, error) {
	record, ok, err := s.index.FindByID(ctx, id)
	if err != nil {
		return models.FileRecord{}, models.Server(fmt.Errorf("find by id: %w", err))
	}
	if !ok {
		return models.FileRecord{}, fmt.Errorf("file %s: %w", id, models.ErrUnknownID)
	}
	return record, nil
}

// Download opens the blob of record id. The caller closes the returned body.
func (s *FileService) Download(ctx context.Context, id string) (*models.Download, error) {
	record, err := s.Lookup(ctx, id)
	if err != nil {
		if models.IsClientError(err) {
			s.log.Warn("file entity not found", "id", id)
		}
		return nil, err
	}

	if !record.Finalized() {
		s.log.Error("file record has no location", "id", id)
		return nil, fmt.Errorf("file %s: %w", id, models.ErrInconsistent)
	}

	exists, err := s.blobs.Exists(ctx, record.Location)
	if err != nil {
		return nil, models.Server(fmt.Errorf("check blob %s: %w", record.Location, err))
	}
	if !exists {
		s.log.Error("file not found in storage", "id", id, "location", record.Location)
		return nil, fmt.Errorf("file %s: %w", id, models.ErrInconsistent)
	}

	body, size, err := s.blobs.Get(ctx, record.Location)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, fmt.Errorf("file %s: %w", id, models.ErrInconsistent)
	}
	if err != nil {
		return nil, models.Server(fmt.Errorf("open blob %s: %w", record.Location, err))
	}

	return &models.Download{
		Body:        body,
		Size:        size,
		Name:        record.Name,
		ContentType: content.DefaultMIME,
		Disposition: mime.FormatMediaType("attachment", map[string]string{"filename": record.Name}),
	}, nil
}

// hashed is an upload whose fingerprint is known and whose bytes can be read again.
type hashed struct {
	hash     string
	size     int64
	mimeType string
	body     io.Reader
	release  func()
}

// hash fingerprints r and arranges for its content to be readable a second time:
// seekable sources are rewound, anything else is spooled to a temp file.
func (s *FileService) hash(r io.Reader) (*hashed, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err == nil {
			return hashSeekable(rs, start)
		}
	}

	spool, err := os.CreateTemp(s.spoolDir, "spool-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create spool file: %w", filestore.ErrStorage, err)
	}
	release := func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}

	hr := content.NewHashingReader(r)
	if _, err := io.Copy(spool, hr); err != nil {
		release()
		if errors.Is(err, content.ErrHashing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to spool upload: %w", filestore.ErrStorage, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		release()
		return nil, fmt.Errorf("%w: failed to rewind spool file: %w", filestore.ErrStorage, err)
	}

	return &hashed{
		hash:     hr.Sum(),
		size:     hr.Size(),
		mimeType: content.DetectMIME(hr.Head()),
		body:     spool,
		release:  release,
	}, nil
}

func hashSeekable(rs io.ReadSeeker, start int64) (*hashed, error) {
	hr := content.NewHashingReader(rs)
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return nil, err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: failed to rewind upload: %w", content.ErrHashing, err)
	}
	return &hashed{
		hash:     hr.Sum(),
		size:     hr.Size(),
		mimeType: content.DetectMIME(hr.Head()),
		body:     rs,
		release:  func() {},
	}, nil
}
