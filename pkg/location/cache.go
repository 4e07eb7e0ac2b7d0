package location

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedExtractor memoizes results of another extractor, keyed by the
// SHA-256 of the caption. Misses are cached too.
type CachedExtractor struct {
	next  LocationExtractor
	cache *gocache.Cache
}

// NewCached wraps next with an in-memory cache. Entries expire after ttl;
// a non-positive ttl keeps them for the life of the process.
func NewCached(next LocationExtractor, ttl time.Duration) *CachedExtractor {
	expiration := ttl
	cleanup := ttl * 2
	if ttl <= 0 {
		expiration = gocache.NoExpiration
		cleanup = 0
	}
	return &CachedExtractor{
		next:  next,
		cache: gocache.New(expiration, cleanup),
	}
}

// Extract returns the cached result for caption, computing it on a miss.
// Each call gets its own copy.
func (c *CachedExtractor) Extract(caption string) *Location {
	key := cacheKey(caption)
	if v, ok := c.cache.Get(key); ok {
		return v.(*Location).Clone()
	}

	loc := c.next.Extract(caption)
	c.cache.SetDefault(key, loc)
	return loc.Clone()
}

// Len reports the number of cached captions
func (c *CachedExtractor) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(caption string) string {
	sum := sha256.Sum256([]byte(caption))
	return hex.EncodeToString(sum[:])
}
