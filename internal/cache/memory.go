package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps archive payloads in process memory until their TTL
// passes. Expired entries are swept every cleanup interval.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates an archive cache with a default TTL
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(archiveURL string) ([]byte, bool) {
	v, ok := c.items.Get(Key(archiveURL))
	if !ok {
		return nil, false
	}
	payload, ok := v.([]byte)
	return payload, ok
}

// Set stores a payload; a zero ttl uses the cache default
func (c *MemoryCache) Set(archiveURL string, payload []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(Key(archiveURL), payload, ttl)
}

func (c *MemoryCache) Evict(archiveURL string) {
	c.items.Delete(Key(archiveURL))
}

// Len counts stored payloads, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
