package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookfit/credits/internal/infrastructure/metrics"
)

// Cache implements usecase.Cache using Redis.
type Cache struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewCache creates a new Cache. Keys are namespaced under the credits
// service so the redis instance can be shared.
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "credits:",
	}
}

// WithMetrics enables per-operation counters and latency histograms.
func (c *Cache) WithMetrics(m *metrics.Metrics) *Cache {
	c.metrics = m
	return c
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	c.observe("get", start, err)
	return val, err
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	c.observe("set", start, err)
	return err
}

// SetNX sets a value only if it doesn't exist.
func (c *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	start := time.Now()
	set, err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
	c.observe("setnx", start, err)
	return set, err
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.client.Del(ctx, c.prefix+key).Err()
	c.observe("del", start, err)
	return err
}

// observe records one operation. A cache miss is not an error.
func (c *Cache) observe(op string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}

	c.metrics.RedisOperations.WithLabelValues(op).Inc()
	c.metrics.RedisDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, redis.Nil) {
		c.metrics.RedisErrors.WithLabelValues(op).Inc()
	}
}
