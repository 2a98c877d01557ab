package storage

import (
	"context"
	"errors"
	"time"

	"dedupstore/internal/models"

	"github.com/c-pro/geche"
)

const cacheCleanupInterval = time.Minute

// CachedIndex is a read-through cache in front of another Index.
// Only finalized records are cached: they never change after their location is set.
type CachedIndex struct {
	inner  Index
	byID   geche.Geche[string, models.FileRecord]
	byHash geche.Geche[string, models.FileRecord]
}

// NewCachedIndex wraps inner. Entries expire after ttl; the cleanup goroutine stops with ctx.
func NewCachedIndex(ctx context.Context, inner Index, ttl time.Duration) *CachedIndex {
	return &CachedIndex{
		inner:  inner,
		byID:   geche.NewMapTTLCache[string, models.FileRecord](ctx, ttl, cacheCleanupInterval),
		byHash: geche.NewMapTTLCache[string, models.FileRecord](ctx, ttl, cacheCleanupInterval),
	}
}

func (c *CachedIndex) remember(record models.FileRecord) {
	if !record.Finalized() {
		return
	}
	c.byID.Set(record.ID, record)
}

func (c *CachedIndex) FindByID(ctx context.Context, id string) (models.FileRecord, bool, error) {
	if record, err := c.byID.Get(id); err == nil {
		return record, true, nil
	}
	record, ok, err := c.inner.FindByID(ctx, id)
	if err != nil || !ok {
		return record, ok, err
	}
	c.remember(record)
	return record, true, nil
}

func (c *CachedIndex) FindByHash(ctx context.Context, hash string) (models.FileRecord, bool, error) {
	if record, err := c.byHash.Get(hash); err == nil {
		return record, true, nil
	}
	record, ok, err := c.inner.FindByHash(ctx, hash)
	if err != nil || !ok {
		return record, ok, err
	}
	if record.Finalized() {
		c.byHash.Set(hash, record)
		c.remember(record)
	}
	return record, true, nil
}

func (c *CachedIndex) Create(ctx context.Context, record models.FileRecord) (models.FileRecord, error) {
	return c.inner.Create(ctx, record)
}

func (c *CachedIndex) Update(ctx context.Context, record models.FileRecord) (models.FileRecord, error) {
	updated, err := c.inner.Update(ctx, record)
	if err != nil {
		return updated, err
	}
	c.remember(updated)
	return updated, nil
}

// ListFiles bypasses the cache.
func (c *CachedIndex) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	lister, ok := c.inner.(Lister)
	if !ok {
		return nil, errors.New("underlying index cannot list files")
	}
	return lister.ListFiles(ctx)
}

var _ IndexLister = (*CachedIndex)(nil)
