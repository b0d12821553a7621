// Package caching provides a two-tier cache for composed diagnosis results.
// Keys carry the rule snapshot version, so a store update naturally invalidates
// every older entry without explicit flushing.
package caching

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// ResultCacheConfig defines configuration for the diagnosis result cache.
type ResultCacheConfig struct {
	// RedisClient enables the distributed tier; nil keeps the cache
	// memory-only.
	RedisClient *redis.Client
	// TTL bounds staleness inside a single snapshot version.
	TTL time.Duration
	// MemorySize is the LRU entry capacity of the in-process tier.
	MemorySize int
	// Enabled turns the cache off entirely when false.
	Enabled bool
}

type cachedResult struct {
	result    *domain.DiagnosisResult
	expiresAt time.Time
}

// ResultCacheStats tracks cache effectiveness.
type ResultCacheStats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Misses     int64 `json:"misses"`
	Sets       int64 `json:"sets"`
}

// ResultCache is a memory-first, redis-second cache for diagnosis results.
// Redis failures degrade to a miss; the cache never fails an evaluation.
type ResultCache struct {
	config ResultCacheConfig
	memory *lru.Cache[string, cachedResult]
	logger *logrus.Logger

	statsMutex sync.Mutex
	stats      ResultCacheStats
}

// NewResultCache creates a result cache with the given configuration.
func NewResultCache(config ResultCacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.MemorySize <= 0 {
		config.MemorySize = 1024
	}

	memory, err := lru.New[string, cachedResult](config.MemorySize)
	if err != nil {
		return nil, err
	}

	return &ResultCache{
		config: config,
		memory: memory,
		logger: logger,
	}, nil
}

// Get looks up a cached result, memory tier first.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.DiagnosisResult, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	if entry, ok := c.memory.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.recordMemoryHit()
			return entry.result, true
		}
		c.memory.Remove(key)
	}

	if c.config.RedisClient != nil {
		payload, err := c.config.RedisClient.Get(ctx, key).Result()
		if err == nil {
			var result domain.DiagnosisResult
			if jsonErr := json.Unmarshal([]byte(payload), &result); jsonErr == nil {
				// Promote to the memory tier for subsequent lookups.
				c.memory.Add(key, cachedResult{
					result:    &result,
					expiresAt: time.Now().Add(c.config.TTL),
				})
				c.recordRedisHit()
				return &result, true
			}
			c.config.RedisClient.Del(ctx, key)
		} else if err != redis.Nil {
			c.logger.WithError(err).Warn("Result cache redis lookup failed")
		}
	}

	c.recordMiss()
	return nil, false
}

// Set stores a result in both tiers. Redis write failures are logged and
// ignored.
func (c *ResultCache) Set(ctx context.Context, key string, result *domain.DiagnosisResult) {
	if !c.config.Enabled || result == nil {
		return
	}

	c.memory.Add(key, cachedResult{
		result:    result,
		expiresAt: time.Now().Add(c.config.TTL),
	})

	if c.config.RedisClient != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			c.logger.WithError(err).Warn("Result cache marshal failed")
		} else if err := c.config.RedisClient.Set(ctx, key, payload, c.config.TTL).Err(); err != nil {
			c.logger.WithError(err).Warn("Result cache redis write failed")
		}
	}

	c.statsMutex.Lock()
	c.stats.Sets++
	c.statsMutex.Unlock()
}

// Purge drops the memory tier. Redis entries age out via TTL.
func (c *ResultCache) Purge() {
	c.memory.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() ResultCacheStats {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return c.stats
}

func (c *ResultCache) recordMemoryHit() {
	c.statsMutex.Lock()
	c.stats.MemoryHits++
	c.statsMutex.Unlock()
}

func (c *ResultCache) recordRedisHit() {
	c.statsMutex.Lock()
	c.stats.RedisHits++
	c.statsMutex.Unlock()
}

func (c *ResultCache) recordMiss() {
	c.statsMutex.Lock()
	c.stats.Misses++
	c.statsMutex.Unlock()
}
