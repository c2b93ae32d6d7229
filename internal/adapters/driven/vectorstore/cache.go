package vectorstore

import (
	"context"
	"errors"

	"github.com/bluele/gcache"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultCacheSize is the number of session indices kept in memory.
const DefaultCacheSize = 16

// Ensure CachedStore implements the interface.
var _ driven.VectorStore = (*CachedStore)(nil)

// CachedStore keeps recently loaded indices in an LRU cache.
// Load returns a clone so callers may modify the result. Save and Remove
// invalidate the session's entry, so a reader never sees an index older
// than the last successful write.
type CachedStore struct {
	next  driven.VectorStore
	cache gcache.Cache
}

// NewCachedStore wraps next with an LRU cache of the given size.
func NewCachedStore(next driven.VectorStore, size int) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedStore{
		next:  next,
		cache: gcache.New(size).LRU().Build(),
	}
}

// Path returns the wrapped store's path.
func (c *CachedStore) Path(sessionID string) string {
	return c.next.Path(sessionID)
}

// Exists reports whether a persisted index exists.
func (c *CachedStore) Exists(sessionID string) bool {
	return c.next.Exists(sessionID)
}

// New returns an empty index.
func (c *CachedStore) New() driven.VectorIndex {
	return c.next.New()
}

// Load returns a clone of the cached index, loading it on a miss.
func (c *CachedStore) Load(ctx context.Context, sessionID string) (driven.VectorIndex, error) {
	if v, err := c.cache.Get(sessionID); err == nil {
		logger.Debug("index cache hit for session %s", sessionID)
		return v.(driven.VectorIndex).Clone(), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	idx, err := c.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(sessionID, idx)
	return idx.Clone(), nil
}

// Save persists the index and invalidates the cached entry.
func (c *CachedStore) Save(ctx context.Context, sessionID string, index driven.VectorIndex) error {
	c.cache.Remove(sessionID)
	if err := c.next.Save(ctx, sessionID, index); err != nil {
		return err
	}
	c.cache.Remove(sessionID)
	return nil
}

// Remove deletes the persisted index and invalidates the cached entry.
func (c *CachedStore) Remove(ctx context.Context, sessionID string) (bool, error) {
	c.cache.Remove(sessionID)
	return c.next.Remove(ctx, sessionID)
}

// Len returns the number of cached indices.
func (c *CachedStore) Len() int {
	return c.cache.Len(false)
}
