package utils

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Minute
	// CachePrefix namespaces every key written by the board listing cache.
	CachePrefix = "cache:board:"
	// versionPrefix must stay outside CachePrefix so invalidation keeps the counters.
	versionPrefix = "cache:boardver:"
)

// Cache is a best-effort JSON cache on Redis. A nil *Cache is valid and caches nothing.
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewCache wraps a Redis client. A non-positive ttl selects the default.
func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rc: rc, ttl: ttl}
}

// ListKey is the cache key of one listing page of a board type at a board version.
func ListKey(boardType string, version int64, page, limit int) string {
	return CachePrefix + boardType + ":v" + strconv.FormatInt(version, 10) +
		":list:" + strconv.Itoa(page) + ":" + strconv.Itoa(limit)
}

// BoardPrefix covers every cached key of a board type.
func BoardPrefix(boardType string) string {
	return CachePrefix + boardType + ":"
}

// Version returns the current write version of a board type. Readers must take
// it before loading from the database and build their keys from it.
func (c *Cache) Version(ctx context.Context, boardType string) int64 {
	if c == nil || c.rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := c.rc.Get(ctx, versionPrefix+boardType).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		Sugar.Debugf("cache version failed type=%s err=%v", boardType, err)
	}
	return v
}

// Bump moves a board type to a new version, so pages stored under older
// versions are never read again, and drops the old pages.
func (c *Cache) Bump(ctx context.Context, boardType string) {
	if c == nil || c.rc == nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := c.rc.Incr(bctx, versionPrefix+boardType).Err()
	cancel()
	if err != nil {
		Sugar.Warnf("cache bump failed type=%s err=%v", boardType, err)
	}
	c.InvalidateByPrefix(ctx, BoardPrefix(boardType))
}

// GetBytes returns cached bytes for a key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// SetJSON marshals v and stores it with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil || c.rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if c == nil || c.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
