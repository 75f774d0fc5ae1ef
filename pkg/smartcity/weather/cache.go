package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

const (
	defaultCacheTTL    = 10 * time.Minute
	defaultCacheMaxAge = time.Hour
)

// Fetcher returns current conditions for a coordinate
type Fetcher interface {
	Current(ctx context.Context, lat, lon float64) (*Reading, error)
}

// Cache keeps recent readings per coordinate. Entries older than ttl are not
// served; entries older than maxAge are dropped on the next write.
type Cache struct {
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	maxAge time.Duration
	clock  clock.PassiveClock
	hits   int64
	misses int64
}

type cacheEntry struct {
	reading   *Reading
	timestamp time.Time
	hits      int64
}

// NewCache creates a cache; non-positive durations take the defaults
func NewCache(ttl, maxAge time.Duration, clk clock.PassiveClock) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxAge < ttl {
		maxAge = max(ttl, defaultCacheMaxAge)
	}
	return &Cache{
		data:   make(map[string]*cacheEntry),
		ttl:    ttl,
		maxAge: maxAge,
		clock:  clk,
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// Get returns a fresh reading for the coordinate
func (c *Cache) Get(lat, lon float64) (*Reading, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.data[cacheKey(lat, lon)]
	if !ok || c.clock.Since(entry.timestamp) > c.ttl {
		c.misses++
		return nil, false
	}
	entry.hits++
	c.hits++
	return entry.reading, true
}

// Set stores a reading and drops entries past maxAge
func (c *Cache) Set(lat, lon float64, reading *Reading) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	for key, entry := range c.data {
		if age := now.Sub(entry.timestamp); age > c.maxAge {
			delete(c.data, key)
			klog.V(4).InfoS("Removed expired weather reading", "key", key, "age", age.String(), "hits", entry.hits)
		}
	}
	c.data[cacheKey(lat, lon)] = &cacheEntry{reading: reading, timestamp: now}
}

// Stats returns cache hits and misses
func (c *Cache) Stats() (hits, misses int64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.hits, c.misses
}

// Size returns the number of cached coordinates
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// CachedFetcher serves readings from a Cache and falls through to the
// wrapped fetcher on a miss
type CachedFetcher struct {
	fetcher Fetcher
	cache   *Cache
}

// NewCachedFetcher wraps fetcher with cache
func NewCachedFetcher(fetcher Fetcher, cache *Cache) *CachedFetcher {
	return &CachedFetcher{fetcher: fetcher, cache: cache}
}

// Current returns a cached reading when fresh; errors are never cached
func (f *CachedFetcher) Current(ctx context.Context, lat, lon float64) (*Reading, error) {
	if reading, ok := f.cache.Get(lat, lon); ok {
		klog.V(3).InfoS("Using cached weather reading", "lat", lat, "lon", lon)
		return reading, nil
	}
	reading, err := f.fetcher.Current(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	f.cache.Set(lat, lon, reading)
	return reading, nil
}
