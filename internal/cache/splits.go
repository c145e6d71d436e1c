package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitthat/internal/metrics"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

// DefaultSplitTTL bounds how long a cached split survives if an invalidation
// is lost.
const DefaultSplitTTL = time.Hour

// UserSplitsKey is the cache key of a user's split list.
func UserSplitsKey(userID string) string {
	return fmt.Sprintf("user:%s:splits", userID)
}

// SplitKey is the cache key of a single split.
func SplitKey(splitID string) string {
	return fmt.Sprintf("split:%s", splitID)
}

// SplitCache is a read-through cache over the split store.
//
// It only ever writes copies of data it has just read from the store.
// Mutations go to the store first and then call the Invalidate methods.
type SplitCache struct {
	kv    KV
	store storage.SplitStore
	ttl   time.Duration
}

// NewSplitCache creates a read-through cache. A zero ttl uses DefaultSplitTTL.
func NewSplitCache(kv KV, store storage.SplitStore, ttl time.Duration) *SplitCache {
	if ttl <= 0 {
		ttl = DefaultSplitTTL
	}
	return &SplitCache{kv: kv, store: store, ttl: ttl}
}

// GetUserSplits returns the user's splits, from cache when possible.
func (c *SplitCache) GetUserSplits(ctx context.Context, userID string) ([]*models.PersistedSplit, error) {
	key := UserSplitsKey(userID)
	var splits []*models.PersistedSplit
	if c.lookup(ctx, "user_splits", key, &splits) {
		return splits, nil
	}

	splits, err := c.store.ListSplitsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, splits)
	return splits, nil
}

// GetSplit returns a split by ID, from cache when possible.
// Missing splits are not cached.
func (c *SplitCache) GetSplit(ctx context.Context, splitID string) (*models.PersistedSplit, error) {
	key := SplitKey(splitID)
	var split models.PersistedSplit
	if c.lookup(ctx, "split", key, &split) {
		return &split, nil
	}

	found, err := c.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, found)
	return found, nil
}

// GetOwnedSplit is GetSplit for a caller that must own the split. A split
// owned by someone else fails with storage.ErrForbidden and is not cached
// on the caller's behalf.
func (c *SplitCache) GetOwnedSplit(ctx context.Context, splitID, ownerID string) (*models.PersistedSplit, error) {
	key := SplitKey(splitID)
	var split models.PersistedSplit
	if c.lookup(ctx, "split", key, &split) {
		if split.OwnerID != ownerID {
			return nil, storage.ErrForbidden
		}
		return &split, nil
	}

	found, err := c.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if found.OwnerID != ownerID {
		return nil, storage.ErrForbidden
	}
	c.fill(ctx, key, found)
	return found, nil
}

// InvalidateUserSplits drops the cached split list of a user.
func (c *SplitCache) InvalidateUserSplits(ctx context.Context, userID string) error {
	if err := c.kv.Del(ctx, UserSplitsKey(userID)); err != nil {
		metrics.CacheInvalidationErrors.WithLabelValues("user_splits").Inc()
		return err
	}
	return nil
}

// InvalidateSplit drops a cached split.
func (c *SplitCache) InvalidateSplit(ctx context.Context, splitID string) error {
	if err := c.kv.Del(ctx, SplitKey(splitID)); err != nil {
		metrics.CacheInvalidationErrors.WithLabelValues("split").Inc()
		return err
	}
	return nil
}

// lookup decodes a cached value into dst. Any failure counts as a miss so
// the caller falls back to the store.
func (c *SplitCache) lookup(ctx context.Context, keyspace, key string, dst any) bool {
	data, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		metrics.CacheLookups.WithLabelValues(keyspace, "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(keyspace, "error").Inc()
		slog.Warn("Cache read failed, falling back to store", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheLookups.WithLabelValues(keyspace, "error").Inc()
		slog.Warn("Cached value is corrupt, falling back to store", "key", key, "error", err)
		return false
	}
	metrics.CacheLookups.WithLabelValues(keyspace, "hit").Inc()
	return true
}

func (c *SplitCache) fill(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Failed to encode value for cache", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		slog.Warn("Failed to populate cache", "key", key, "error", err)
	}
}
