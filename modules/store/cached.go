package store

import (
	"context"

	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"

	"github.com/radsadsoap/EchoWave/modules/cache"
)

// CachedBackend fronts a Backend with a Redis read-through cache for Get.
// Writes and deletes invalidate the cached record. Queries are not cached.
type CachedBackend struct {
	Backend
	cache  *cache.Cache
	group  singleflight.Group
	logger types.Logger
}

// NewCachedBackend wraps next with c.
func NewCachedBackend(next Backend, c *cache.Cache, logger types.Logger) *CachedBackend {
	return &CachedBackend{
		Backend: next,
		cache:   c,
		logger:  logger,
	}
}

func cacheKey(collection, id string) string {
	return collection + ":" + id
}

// Create writes through and drops any stale cached copy.
func (b *CachedBackend) Create(ctx context.Context, collection string, data Document) (string, error) {
	id, err := b.Backend.Create(ctx, collection, data)
	if err != nil {
		return "", err
	}
	b.invalidate(ctx, collection, id)
	return id, nil
}

// Get serves from the cache, loading from the backend once per key on a miss.
func (b *CachedBackend) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	key := cacheKey(collection, id)

	var cached Document
	found, err := b.cache.Get(ctx, key, &cached)
	if err != nil {
		b.logger.Warn("Cache read failed, falling back to store", "key", key, "error", err)
	}
	if found {
		return cached, true, nil
	}

	type result struct {
		doc   Document
		found bool
	}
	v, err, _ := b.group.Do(key, func() (any, error) {
		doc, ok, err := b.Backend.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := b.cache.Set(ctx, key, doc); err != nil {
				b.logger.Warn("Failed to populate cache", "key", key, "error", err)
			}
		}
		return result{doc: doc, found: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(result)
	return res.doc, res.found, nil
}

// Delete removes the record and its cached copy.
func (b *CachedBackend) Delete(ctx context.Context, collection, id string) (bool, error) {
	deleted, err := b.Backend.Delete(ctx, collection, id)
	if err != nil {
		return false, err
	}
	b.invalidate(ctx, collection, id)
	return deleted, nil
}

// Close closes the backend and the cache connection.
func (b *CachedBackend) Close() error {
	err := b.Backend.Close()
	if cerr := b.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// Stats returns the cache counters.
func (b *CachedBackend) Stats() cache.StatsSnapshot {
	return b.cache.Stats()
}

func (b *CachedBackend) invalidate(ctx context.Context, collection, id string) {
	if err := b.cache.Delete(ctx, cacheKey(collection, id)); err != nil {
		b.logger.Warn("Failed to invalidate cache", "collection", collection, "id", id, "error", err)
	}
}
