// Package xcache provides typed caches on top of gocache, configured
// from a single Config: in-memory, redis, or a two-level chain of both.
// Services that only need optional caching take a Cache[T] and receive
// a noop implementation when caching is disabled.
package xcache

import (
	"context"
	"fmt"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/looplj/approvalhub/internal/log"
	redis_store "github.com/looplj/approvalhub/internal/pkg/xcache/redis"
	"github.com/looplj/approvalhub/internal/pkg/xredis"
)

// Cache is the common typed cache surface:
// Get/Set/Delete/Invalidate/Clear/GetType. See
// github.com/eko/gocache/lib/v4/cache.
type Cache[T any] = cachelib.CacheInterface[T]

// SetterCache additionally exposes GetWithTTL and the codec; the
// two-level chain requires it for its layers.
type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// NewMemory builds an in-memory cache on an existing go-cache client,
// so the caller controls default expiration and cleanup interval.
func NewMemory[T any](client *gocache.Cache, options ...Option) SetterCache[T] {
	return cachelib.New[T](gocache_store.NewGoCache(client, options...))
}

// NewMemoryWithOptions builds the go-cache client too.
func NewMemoryWithOptions[T any](defaultExpiration, cleanupInterval time.Duration, options ...Option) SetterCache[T] {
	return NewMemory[T](gocache.New(defaultExpiration, cleanupInterval), options...)
}

// NewRedis builds a redis-backed cache on an existing client.
func NewRedis[T any](client *redis.Client, options ...Option) SetterCache[T] {
	return cachelib.New[T](redis_store.NewRedisStore[T](client, options...))
}

// NewTwoLevel chains a memory layer in front of a redis layer.
func NewTwoLevel[T any](memory SetterCache[T], redis SetterCache[T]) Cache[T] {
	return cachelib.NewChain[T](memory, redis)
}

// NewFromConfig builds a typed cache for the configured mode. An empty
// or unknown mode yields a noop cache. A redis mode with an unreachable
// or invalid redis config panics: a deployment that asks for redis
// caching must not silently run without it.
func NewFromConfig[T any](cfg Config) Cache[T] {
	if cfg.Mode == "" {
		return NewNoop[T]()
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanup := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)
	mem := NewMemory[T](gocache.New(memExpiration, memCleanup), store.WithExpiration(memExpiration))

	var rds SetterCache[T]

	if cfg.Mode != ModeMemory && (cfg.Redis.Addr != "" || cfg.Redis.URL != "") {
		client, err := xredis.NewClient(cfg.Redis)
		if err != nil {
			panic(fmt.Errorf("cache redis unavailable: %w", err))
		}

		redisExpiration := defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)
		rds = NewRedis[T](client, store.WithExpiration(redisExpiration))
	}

	switch cfg.Mode {
	case ModeMemory:
		log.Info(context.Background(), "Using memory cache")
		return mem
	case ModeRedis:
		if rds == nil {
			panic(fmt.Errorf("cache mode %q requires a redis addr or url", ModeRedis))
		}

		log.Info(context.Background(), "Using redis cache")

		return rds
	case ModeTwoLevel:
		if rds == nil {
			return mem
		}

		log.Info(context.Background(), "Using two-level cache")

		return NewTwoLevel[T](mem, rds)
	default:
		log.Info(context.Background(), "Disable cache", log.String("mode", cfg.Mode))
		return NewNoop[T]()
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}
