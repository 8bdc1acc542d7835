package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bookfit/credits/internal/infrastructure/metrics"
)

// newTestMetrics registers collectors against a fresh registry so tests can
// run repeatedly in one process.
func newTestMetrics() *metrics.Metrics {
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry

	return metrics.New()
}

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", "bar", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "foo")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if val != "bar" {
		t.Fatalf("expected bar, got %s", val)
	}
}

func TestCacheNamespacesKeys(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "balance:user:u-1", "x", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if _, err := mr.Get("credits:balance:user:u-1"); err != nil {
		t.Fatalf("expected key under the credits namespace: %v", err)
	}
}

func TestCacheSetNX(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	set, err := cache.SetNX(ctx, "key", "first", time.Minute)
	if err != nil || !set {
		t.Fatalf("expected first SetNX to succeed, got set=%v err=%v", set, err)
	}

	set, err = cache.SetNX(ctx, "key", "second", time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if set {
		t.Fatalf("expected second SetNX to fail because key exists")
	}
}

func TestCacheDelete(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", "bar", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := cache.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := cache.Get(ctx, "foo"); err == nil {
		t.Fatalf("expected error getting deleted key")
	}
}

func TestCacheRecordsOperationMetrics(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	m := newTestMetrics()
	cache := NewCache(client).WithMetrics(m)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", "bar", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := cache.Get(ctx, "foo"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := cache.Get(ctx, "missing"); err == nil {
		t.Fatal("expected miss on unknown key")
	}

	if got := testutil.ToFloat64(m.RedisOperations.WithLabelValues("set")); got != 1 {
		t.Errorf("set operations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RedisOperations.WithLabelValues("get")); got != 2 {
		t.Errorf("get operations = %v, want 2", got)
	}

	// A miss is not counted as an error.
	if got := testutil.ToFloat64(m.RedisErrors.WithLabelValues("get")); got != 0 {
		t.Errorf("get errors = %v, want 0", got)
	}
}
