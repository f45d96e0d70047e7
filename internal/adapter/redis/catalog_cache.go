package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogCache is a domain.CatalogSource that puts an in-memory layer and an
// optional shared Redis layer in front of the upstream catalog. Concurrent
// fetches of the same family share one upstream call, which runs detached
// from any single caller's cancellation. Errors are never cached.
type CatalogCache struct {
	upstream     domain.CatalogSource
	rdb          goredis.Cmdable
	mem          *memoryCache
	redisTTL     time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	metrics      *metrics.CacheMetrics
}

// sharedFetchTimeout bounds a shared fetch once it no longer follows the
// caller that started it.
const sharedFetchTimeout = 2 * time.Minute

var _ domain.CatalogSource = (*CatalogCache)(nil)

// NewCatalogCache wraps upstream. rdb and cm may be nil.
func NewCatalogCache(upstream domain.CatalogSource, rdb goredis.Cmdable, clock clockwork.Clock, ttl time.Duration, cm *metrics.CacheMetrics) *CatalogCache {
	return &CatalogCache{
		upstream:     upstream,
		rdb:          rdb,
		mem:          newMemoryCache(clock, ttl),
		redisTTL:     ttl,
		fetchTimeout: sharedFetchTimeout,
		metrics:      cm,
	}
}

// StartEvictionTimer runs a periodic goroutine that evicts expired in-memory cache entries.
// Returns a stop function that should be deferred.
func (c *CatalogCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.mem.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired catalog cache entries", "count", evicted, "remaining", c.mem.size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

func (c *CatalogCache) FetchFamily(ctx context.Context, family string) (domain.RawFile, error) {
	key := fontset.NormalizeKey(family)

	// Layer 1: in-memory cache
	if file, ok := c.mem.get(key); ok {
		c.hit("memory")
		return file, nil
	}
	c.miss("memory")

	ch := c.group.DoChan(key, func() (any, error) {
		// Callers that join later must not fail because the first one left.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		// Layer 2: Redis cache
		if file, ok := c.getCached(fetchCtx, key); ok {
			c.hit("redis")
			c.mem.set(key, file)
			return file, nil
		}
		if c.rdb != nil {
			c.miss("redis")
		}

		// Layer 3: upstream catalog
		file, err := c.upstream.FetchFamily(fetchCtx, family)
		if err != nil {
			return domain.RawFile{}, fmt.Errorf("catalog lookup for %q failed: %w", family, err)
		}

		c.mem.set(key, file)
		c.writeCache(fetchCtx, key, file)
		return file, nil
	})

	select {
	case <-ctx.Done():
		return domain.RawFile{}, ctx.Err()
	case res := <-ch:
		if res.Shared && c.metrics != nil {
			c.metrics.Shared.Inc()
		}
		if res.Err != nil {
			return domain.RawFile{}, res.Err
		}
		return res.Val.(domain.RawFile), nil
	}
}

// Invalidate evicts a family from both layers.
func (c *CatalogCache) Invalidate(ctx context.Context, family string) error {
	key := fontset.NormalizeKey(family)
	c.mem.invalidate(key)

	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, catalogCacheKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

type cachedFile struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func (c *CatalogCache) writeCache(ctx context.Context, key string, file domain.RawFile) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(cachedFile(file))
	if err != nil {
		slog.Warn("Failed to marshal font for Redis cache", "family", key, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, catalogCacheKey(key), encoded, c.redisTTL).Err(); err != nil {
		slog.Warn("Failed to populate Redis catalog cache", "family", key, "error", err)
	}
}

func (c *CatalogCache) getCached(ctx context.Context, key string) (domain.RawFile, bool) {
	if c.rdb == nil {
		return domain.RawFile{}, false
	}

	data, err := c.rdb.Get(ctx, catalogCacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis catalog cache GET failed", "family", key, "error", err)
		}
		return domain.RawFile{}, false
	}

	var file cachedFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("Failed to unmarshal cached font", "family", key, "error", err)
		return domain.RawFile{}, false
	}
	return domain.RawFile(file), true
}

func (c *CatalogCache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.Hits.WithLabelValues(layer).Inc()
	}
}

func (c *CatalogCache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.Misses.WithLabelValues(layer).Inc()
	}
}

const (
	catalogCacheKeyPrefix = "catalog_cache:"
	purgeScanCount        = 100
)

func catalogCacheKey(key string) string {
	return catalogCacheKeyPrefix + key
}

// PurgeCatalogCache removes every catalog family cached in Redis and returns
// the number of keys found. With dryRun set nothing is deleted.
func PurgeCatalogCache(ctx context.Context, rdb goredis.Cmdable, dryRun bool) (int, error) {
	var cursor uint64
	var found int

	for {
		keys, next, err := rdb.Scan(ctx, cursor, catalogCacheKeyPrefix+"*", purgeScanCount).Result()
		if err != nil {
			return found, fmt.Errorf("scan failed: %w", err)
		}

		found += len(keys)
		if len(keys) > 0 && !dryRun {
			if err := rdb.Unlink(ctx, keys...).Err(); err != nil {
				return found, fmt.Errorf("unlink failed: %w", err)
			}
		}
		for _, key := range keys {
			slog.Debug("catalog cache entry", "family", strings.TrimPrefix(key, catalogCacheKeyPrefix), "dry_run", dryRun)
		}

		cursor = next
		if cursor == 0 {
			return found, nil
		}
	}
}

// memoryCache is an in-memory L1 cache with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type memoryCacheEntry struct {
	file      domain.RawFile
	expiresAt time.Time
}

func newMemoryCache(clock clockwork.Clock, ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[string]*memoryCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *memoryCache) get(key string) (domain.RawFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return domain.RawFile{}, false
	}
	return entry.file, true
}

func (c *memoryCache) set(key string, file domain.RawFile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &memoryCacheEntry{
		file:      file,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

func (c *memoryCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
