package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/sirupsen/logrus"
)

// QuoteCache stores resolved quotes with an expiry. Implementations only
// return entries that are still fresh.
type QuoteCache interface {
	Get(ctx context.Context, ticker string) (models.CachedQuote, bool)
	Set(ctx context.Context, result models.QuoteResult, ttl time.Duration) error
	Delete(ctx context.Context, ticker string) error
	Clear(ctx context.Context) error
	Size(ctx context.Context) int
	Stats(ctx context.Context) map[string]interface{}
}

// Clock returns the current time
type Clock func() time.Time

func cacheKey(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// MemoryQuoteCache is an in-process QuoteCache guarded by a RWMutex
type MemoryQuoteCache struct {
	entries map[string]models.CachedQuote
	mutex   sync.RWMutex
	maxSize int
	now     Clock
}

// NewMemoryQuoteCache creates an in-memory cache holding at most maxSize quotes
func NewMemoryQuoteCache(maxSize int) *MemoryQuoteCache {
	return NewMemoryQuoteCacheWithClock(maxSize, time.Now)
}

// NewMemoryQuoteCacheWithClock is NewMemoryQuoteCache with an injected clock
func NewMemoryQuoteCacheWithClock(maxSize int, now Clock) *MemoryQuoteCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryQuoteCache{
		entries: make(map[string]models.CachedQuote),
		maxSize: maxSize,
		now:     now,
	}
}

// Get retrieves a fresh quote
func (c *MemoryQuoteCache) Get(_ context.Context, ticker string) (models.CachedQuote, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[cacheKey(ticker)]
	if !exists || entry.IsExpiredAt(c.now()) {
		return models.CachedQuote{}, false
	}
	return entry, true
}

// Set stores a quote for ttl
func (c *MemoryQuoteCache) Set(_ context.Context, result models.QuoteResult, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(result.Ticker)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.purgeExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
	}

	now := c.now()
	c.entries[key] = models.CachedQuote{
		Result:    result,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// evictOldest removes the entry closest to expiry
func (c *MemoryQuoteCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Delete removes one quote
func (c *MemoryQuoteCache) Delete(_ context.Context, ticker string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, cacheKey(ticker))
	return nil
}

// Clear removes every quote
func (c *MemoryQuoteCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]models.CachedQuote)
	return nil
}

// Size returns the number of stored quotes, stale ones included
func (c *MemoryQuoteCache) Size(_ context.Context) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// PurgeExpired drops stale quotes and returns how many were removed
func (c *MemoryQuoteCache) PurgeExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := c.purgeExpiredLocked()
	if removed > 0 {
		logrus.WithFields(logrus.Fields{
			"component": "MemoryQuoteCache",
			"removed":   removed,
			"remaining": len(c.entries),
		}).Debug("Purged expired quotes")
	}
	return removed
}

func (c *MemoryQuoteCache) purgeExpiredLocked() int {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.IsExpiredAt(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats describes the cache for the metrics endpoint
func (c *MemoryQuoteCache) Stats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"type":     "in-memory",
		"size":     c.Size(ctx),
		"max_size": c.maxSize,
	}
}
