package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisQuotePrefix = "ipo-scorecard:quote:"

// RedisQuoteCache shares quotes between dashboard instances
type RedisQuoteCache struct {
	client *redis.Client
	now    Clock
}

// NewRedisQuoteCache wraps an existing client
func NewRedisQuoteCache(client *redis.Client) *RedisQuoteCache {
	return &RedisQuoteCache{client: client, now: time.Now}
}

// NewRedisQuoteCacheFromURL parses a redis:// URL and checks connectivity
func NewRedisQuoteCacheFromURL(ctx context.Context, redisURL string) (*RedisQuoteCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "RedisQuoteCache",
		"addr":      opts.Addr,
		"db":        opts.DB,
	}).Info("Connected to redis quote cache")

	return NewRedisQuoteCache(client), nil
}

// Close releases the client
func (c *RedisQuoteCache) Close() error {
	return c.client.Close()
}

func redisKey(ticker string) string {
	return redisQuotePrefix + cacheKey(ticker)
}

// Get retrieves a fresh quote. Redis errors count as misses.
func (c *RedisQuoteCache) Get(ctx context.Context, ticker string) (models.CachedQuote, bool) {
	data, err := c.client.Get(ctx, redisKey(ticker)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithFields(logrus.Fields{
				"component": "RedisQuoteCache",
				"ticker":    ticker,
			}).WithError(err).Warn("Redis get failed, treating as miss")
		}
		return models.CachedQuote{}, false
	}

	var entry models.CachedQuote
	if err := json.Unmarshal(data, &entry); err != nil {
		logrus.WithField("component", "RedisQuoteCache").WithError(err).Warn("Discarding undecodable cached quote")
		return models.CachedQuote{}, false
	}
	if entry.IsExpiredAt(c.now()) {
		return models.CachedQuote{}, false
	}
	return entry, true
}

// Set stores a quote with a redis expiry of ttl. A non-positive ttl stores
// nothing, since redis would keep such a key forever.
func (c *RedisQuoteCache) Set(ctx context.Context, result models.QuoteResult, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, result.Ticker)
	}

	now := c.now()
	entry := models.CachedQuote{Result: result, StoredAt: now, ExpiresAt: now.Add(ttl)}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(result.Ticker), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store quote in redis: %w", err)
	}
	return nil
}

// Delete removes one quote
func (c *RedisQuoteCache) Delete(ctx context.Context, ticker string) error {
	return c.client.Del(ctx, redisKey(ticker)).Err()
}

// Clear removes every quote written by this service
func (c *RedisQuoteCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Size counts stored quotes
func (c *RedisQuoteCache) Size(ctx context.Context) int {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0
	}
	return len(keys)
}

func (c *RedisQuoteCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, redisQuotePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan quote keys: %w", err)
	}
	return keys, nil
}

// Stats describes the cache for the metrics endpoint
func (c *RedisQuoteCache) Stats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"type": "redis",
		"size": c.Size(ctx),
	}
}
