package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService holds recently issued certificate results so an operator
// re-run does not hit a portal (and pay for a challenge solution) for an
// entity whose certificate was just extracted. Redis when available, with
// an in-memory fallback so the engine degrades instead of breaking.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	memCache map[string]cacheItem
	memMutex sync.RWMutex
}

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// NewCacheService creates the cache. client may be nil, leaving only the
// in-memory layer.
func NewCacheService(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CacheService {
	return &CacheService{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		memCache: make(map[string]cacheItem),
	}
}

// Get retrieves a value.
func (c *CacheService) Get(ctx context.Context, key string) (string, error) {
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			c.logger.WithField("key", key).Debug("Cache hit (Redis)")
			return val, nil
		}
		if err != redis.Nil {
			c.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Redis get error, falling back to memory cache")
		}
	}

	c.memMutex.RLock()
	item, exists := c.memCache[key]
	c.memMutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("key not found")
	}
	if time.Now().After(item.expiresAt) {
		c.memMutex.Lock()
		delete(c.memCache, key)
		c.memMutex.Unlock()
		return "", fmt.Errorf("key not found")
	}

	c.logger.WithField("key", key).Debug("Cache hit (memory)")
	return item.value, nil
}

// Set stores a value under the configured TTL.
func (c *CacheService) Set(ctx context.Context, key string, value string) error {
	if c.client != nil {
		if err := c.client.Set(ctx, key, value, c.ttl).Err(); err == nil {
			return nil
		} else {
			c.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Redis set error, falling back to memory cache")
		}
	}

	c.memMutex.Lock()
	c.memCache[key] = cacheItem{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.memMutex.Unlock()
	return nil
}

// Delete removes one entry from both layers.
func (c *CacheService) Delete(ctx context.Context, key string) error {
	if c.client != nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Redis delete error")
		}
	}

	c.memMutex.Lock()
	delete(c.memCache, key)
	c.memMutex.Unlock()
	return nil
}

// Clear drops every cached certificate entry.
func (c *CacheService) Clear(ctx context.Context) error {
	if c.client != nil {
		iter := c.client.Scan(ctx, 0, "cert:*", 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				c.logger.WithError(err).Warn("Redis clear error")
			}
		}
		if err := iter.Err(); err != nil {
			c.logger.WithError(err).Warn("Redis scan error during clear")
		}
	}

	c.memMutex.Lock()
	for key := range c.memCache {
		if strings.HasPrefix(key, "cert:") {
			delete(c.memCache, key)
		}
	}
	c.memMutex.Unlock()

	c.logger.Info("Certificate cache cleared")
	return nil
}

// Health reports the state of both cache layers.
func (c *CacheService) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.client.Ping(ctx).Err(); err != nil {
			health["redis"] = "unreachable: " + err.Error()
		} else {
			health["redis"] = "ok"
		}
	} else {
		health["redis"] = "disabled"
	}

	c.memMutex.RLock()
	health["memory_entries"] = len(c.memCache)
	c.memMutex.RUnlock()

	return health
}
