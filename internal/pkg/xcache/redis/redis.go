// Package redis implements a typed gocache store on go-redis. Values
// are stored as JSON; tag invalidation uses redis sets.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lib_store "github.com/eko/gocache/lib/v4/store"
	redis "github.com/redis/go-redis/v9"
)

// RedisClientInterface is the slice of go-redis the store needs.
type RedisClientInterface interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, values any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	FlushAll(ctx context.Context) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

const (
	RedisType       = "redis"
	redisTagPattern = "gocache_tag_%s"
	defaultTagsTTL  = 720 * time.Hour
)

// RedisStore adapts a redis client to the typed gocache store contract.
type RedisStore[T any] struct {
	client  RedisClientInterface
	options *lib_store.Options
}

func NewRedisStore[T any](client RedisClientInterface, options ...lib_store.Option) *RedisStore[T] {
	return &RedisStore[T]{
		client:  client,
		options: lib_store.ApplyOptions(options...),
	}
}

// Get returns the value stored under key, decoded from JSON.
func (s *RedisStore[T]) Get(ctx context.Context, key any) (any, error) {
	var result T

	keyString, err := stringKey(key)
	if err != nil {
		return result, err
	}

	object, err := s.client.Get(ctx, keyString).Result()
	if errors.Is(err, redis.Nil) {
		return result, lib_store.NotFoundWithCause(err)
	}

	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(object), &result); err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// GetWithTTL returns the value and the key's remaining TTL.
func (s *RedisStore[T]) GetWithTTL(ctx context.Context, key any) (any, time.Duration, error) {
	var result T

	keyString, err := stringKey(key)
	if err != nil {
		return result, 0, err
	}

	object, err := s.client.Get(ctx, keyString).Result()
	if errors.Is(err, redis.Nil) {
		return result, 0, lib_store.NotFoundWithCause(err)
	}

	if err != nil {
		return result, 0, err
	}

	if err := json.Unmarshal([]byte(object), &result); err != nil {
		var zero T
		return zero, 0, err
	}

	ttl, err := s.client.TTL(ctx, keyString).Result()
	if err != nil {
		var zero T
		return zero, 0, err
	}

	return result, ttl, nil
}

// Set stores value under key as JSON, registering any configured tags.
func (s *RedisStore[T]) Set(ctx context.Context, key any, value any, options ...lib_store.Option) error {
	opts := lib_store.ApplyOptionsWithDefault(s.options, options...)

	keyString, err := stringKey(key)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, keyString, string(raw), opts.Expiration).Err(); err != nil {
		return err
	}

	if tags := opts.Tags; len(tags) > 0 {
		ttl := opts.TagsTTL
		if ttl == 0 {
			ttl = defaultTagsTTL
		}

		s.setTags(ctx, keyString, tags, ttl)
	}

	return nil
}

func (s *RedisStore[T]) setTags(ctx context.Context, key string, tags []string, ttl time.Duration) {
	for _, tag := range tags {
		tagKey := fmt.Sprintf(redisTagPattern, tag)
		s.client.SAdd(ctx, tagKey, key)
		s.client.Expire(ctx, tagKey, ttl)
	}
}

// Delete removes key.
func (s *RedisStore[T]) Delete(ctx context.Context, key any) error {
	keyString, err := stringKey(key)
	if err != nil {
		return err
	}

	return s.client.Del(ctx, keyString).Err()
}

// Invalidate drops cached data matching the options.
func (s *RedisStore[T]) Invalidate(ctx context.Context, options ...lib_store.InvalidateOption) error {
	return s.client.FlushAll(ctx).Err()
}

// Clear resets the store.
func (s *RedisStore[T]) Clear(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *RedisStore[T]) GetType() string {
	return RedisType
}

func stringKey(key any) (string, error) {
	keyString, ok := key.(string)
	if !ok {
		return "", lib_store.NotFoundWithCause(fmt.Errorf("expected string key, got %T", key))
	}

	return keyString, nil
}
