package redis

import (
	"context"
	"errors"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CACHE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache implements student.Cache on top of the generic Cache.
// Snapshots are keyed by PEN and serialized as JSON. A miss is reported as
// student.ErrSnapshotNotFound so callers fall through to the repository.
type SnapshotCache struct {
	cache *Cache
}

// NewSnapshotCache creates a new SnapshotCache.
func NewSnapshotCache(cache *Cache) *SnapshotCache {
	return &SnapshotCache{cache: cache}
}

// Get returns the cached snapshot for a PEN.
func (c *SnapshotCache) Get(ctx context.Context, pen student.PEN) (*student.Snapshot, error) {
	var snap student.Snapshot
	err := c.cache.Get(ctx, SnapshotKey(pen.String()), &snap)
	if errors.Is(err, ErrCacheMiss) {
		return nil, student.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	return &snap, nil
}

// Set stores a snapshot with the given TTL.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *student.Snapshot, ttl time.Duration) error {
	if snapshot == nil {
		return ErrCacheNilValue
	}
	if ttl <= 0 {
		ttl = TTLSnapshot
	}

	return c.cache.Set(ctx, SnapshotKey(snapshot.Pen.String()), snapshot, ttl)
}

// Delete invalidates the cached snapshot for a PEN.
func (c *SnapshotCache) Delete(ctx context.Context, pen student.PEN) error {
	return c.cache.Delete(ctx, SnapshotKey(pen.String()))
}
