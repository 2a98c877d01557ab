package storage

import (
	"context"
	"fmt"
	"time"

	"dedupstore/internal/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketFiles       = []byte("files")
	bucketFilesByHash = []byte("files_by_hash")
)

type BboltStorage struct {
	db    *bbolt.DB
	newID func() string
	now   func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFiles); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketFilesByHash); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, newID: uuid.NewString, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

func getFile(b *bbolt.Bucket, id []byte) (*DBFile, error) {
	data := b.Get(id)
	if data == nil {
		return nil, nil
	}
	var f DBFile
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file %s: %w", id, err)
	}
	return &f, nil
}

func putFile(b *bbolt.Bucket, f *DBFile) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}
	return b.Put(f.Key(), data)
}

// FindByID returns the record stored under id.
func (s *BboltStorage) FindByID(_ context.Context, id string) (models.FileRecord, bool, error) {
	var found *DBFile
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		found, err = getFile(tx.Bucket(bucketFiles), []byte(id))
		return err
	})
	if err != nil || found == nil {
		return models.FileRecord{}, false, err
	}
	return found.Record(), true, nil
}

// FindByHash resolves the hash index and returns the first finalized record with that content.
func (s *BboltStorage) FindByHash(_ context.Context, hash string) (models.FileRecord, bool, error) {
	var found *DBFile
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketFilesByHash).Get([]byte(hash))
		if id == nil {
			return nil
		}
		var err error
		found, err = getFile(tx.Bucket(bucketFiles), id)
		return err
	})
	if err != nil || found == nil {
		return models.FileRecord{}, false, err
	}
	return found.Record(), true, nil
}

// Create stores a new record with a freshly generated id and no location.
func (s *BboltStorage) Create(_ context.Context, record models.FileRecord) (models.FileRecord, error) {
	record.ID = s.newID()
	record.Location = ""
	record.CreatedAt = s.now().Unix()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		if b.Get([]byte(record.ID)) != nil {
			return fmt.Errorf("file id %s already taken", record.ID)
		}
		return putFile(b, newDBFile(record))
	})
	if err != nil {
		return models.FileRecord{}, err
	}
	return record, nil
}

// Update overwrites an existing record. When the record carries a location
// and no other record owns its hash yet, the hash index is pointed at it.
func (s *BboltStorage) Update(_ context.Context, record models.FileRecord) (models.FileRecord, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		if files.Get([]byte(record.ID)) == nil {
			return fmt.Errorf("file %s: %w", record.ID, models.ErrNotFound)
		}
		if err := putFile(files, newDBFile(record)); err != nil {
			return err
		}

		if !record.Finalized() || record.Hash == "" {
			return nil
		}
		byHash := tx.Bucket(bucketFilesByHash)
		if byHash.Get([]byte(record.Hash)) != nil {
			return nil
		}
		return byHash.Put([]byte(record.Hash), []byte(record.ID))
	})
	if err != nil {
		return models.FileRecord{}, err
	}
	return record, nil
}

// ListFiles returns all records in id order.
func (s *BboltStorage) ListFiles(_ context.Context) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		return b.ForEach(func(k, v []byte) error {
			var f DBFile
			if err := f.UnmarshalBinary(v); err != nil {
				return fmt.Errorf("failed to unmarshal file %s: %w", k, err)
			}
			records = append(records, f.Record())
			return nil
		})
	})
	return records, err
}

var _ IndexLister = (*BboltStorage)(nil)
