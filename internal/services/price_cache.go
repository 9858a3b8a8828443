package services

import (
	"context"
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

const (
	// DefaultFreshnessWindow is how long after capture a cache entry may
	// serve a valuation
	DefaultFreshnessWindow = 24 * time.Hour

	defaultMemoryCacheSize = 128

	// maxMemoryEntryBytes caps the bodies of one entry held in memory, so
	// the memory tier stays under defaultMemoryCacheSize * 256 KiB. Larger
	// entries are served from the store only.
	maxMemoryEntryBytes = 256 << 10
)

// PriceCacheStore is the persistent key-value store behind the cache.
// GetCacheEntry returns nil, nil when the key is absent. PutCacheEntry
// overwrites any existing entry for the key.
type PriceCacheStore interface {
	GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error
}

// PriceCache is a read-through cache of upstream card data keyed by
// normalized card name. A small in-process LRU sits in front of the store.
type PriceCache struct {
	store  PriceCacheStore
	memory *lru.Cache[string, models.CacheEntry]
	window time.Duration
}

// NewPriceCache creates the cache gateway. memorySize <= 0 uses the default
// size; window <= 0 uses DefaultFreshnessWindow.
func NewPriceCache(store PriceCacheStore, memorySize int, window time.Duration) *PriceCache {
	if memorySize <= 0 {
		memorySize = defaultMemoryCacheSize
	}
	if window <= 0 {
		window = DefaultFreshnessWindow
	}

	memory, err := lru.New[string, models.CacheEntry](memorySize)
	if err != nil {
		log.Printf("Price cache: failed to create memory tier: %v", err)
	}

	return &PriceCache{
		store:  store,
		memory: memory,
		window: window,
	}
}

// Window returns the freshness window
func (c *PriceCache) Window() time.Duration {
	return c.window
}

// IsFresh reports whether an entry may serve a valuation as of asOf.
// Freshness is anchored to the valuation date, not the wall clock: the
// entry is usable while asOf < CapturedAt + window.
func IsFresh(entry *models.CacheEntry, asOf time.Time, window time.Duration) bool {
	if entry == nil || entry.CapturedAt.IsZero() {
		return false
	}
	return asOf.Before(entry.FreshUntil(window))
}

// Get returns the cached entry for key, or nil, nil when absent. Store
// failures wrap ErrCacheUnavailable.
func (c *PriceCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	if c.memory != nil {
		if entry, ok := c.memory.Get(key); ok {
			return &entry, nil
		}
	}
	if c.store == nil {
		return nil, nil
	}

	entry, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if entry != nil {
		c.remember(key, entry)
	}
	return entry, nil
}

// Lookup returns the entry for key if it is fresh for asOf. Absent, stale
// and unreadable entries are all reported as a miss; read failures are
// logged and never returned.
func (c *PriceCache) Lookup(ctx context.Context, key string, asOf time.Time) (*models.CacheEntry, bool) {
	if c.memory != nil {
		if entry, ok := c.memory.Get(key); ok && IsFresh(&entry, asOf, c.window) {
			metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
			return &entry, true
		}
	}
	if c.store == nil {
		metrics.CacheLookupsTotal.WithLabelValues("store", "miss").Inc()
		return nil, false
	}

	entry, err := c.store.GetCacheEntry(ctx, key)
	switch {
	case err != nil:
		log.Printf("Price cache: read failed for %s, treating as miss: %v", key, err)
		metrics.CacheLookupsTotal.WithLabelValues("store", "error").Inc()
		return nil, false
	case entry == nil:
		metrics.CacheLookupsTotal.WithLabelValues("store", "miss").Inc()
		return nil, false
	}

	c.remember(key, entry)
	if !IsFresh(entry, asOf, c.window) {
		metrics.CacheLookupsTotal.WithLabelValues("store", "stale").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("store", "hit").Inc()
	return entry, true
}

// Put writes an entry through both tiers. The memory tier is updated even
// when the store write fails, so the current process still benefits.
// Oversized entries only reach the store; with no store they are not kept.
func (c *PriceCache) Put(ctx context.Context, entry *models.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("cache entry must have a key")
	}
	c.remember(entry.Key, entry)
	if c.store == nil {
		return nil
	}
	if err := c.store.PutCacheEntry(ctx, entry); err != nil {
		metrics.CacheWriteErrorsTotal.Inc()
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// remember keeps entry in the memory tier when it is small enough. An
// oversized entry evicts any older copy so memory never serves stale data.
func (c *PriceCache) remember(key string, entry *models.CacheEntry) {
	if c.memory == nil {
		return
	}
	if len(entry.HistoryBody)+len(entry.MetadataBody) > maxMemoryEntryBytes {
		c.memory.Remove(key)
		return
	}
	c.memory.Add(key, *entry)
}
