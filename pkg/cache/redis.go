package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes every key written by RedisStore.
const DefaultKeyPrefix = "httpcache:"

// RedisStore is a KeyStore backed by Redis. Entries are stored as JSON,
// dependency keys as plain strings and counters as Redis integers.
//
// Keys carry the namespace as a hash tag ("{ns:<namespace>}"), so on Redis
// Cluster every key of one namespace maps to the same slot and the
// multi-key SetMulti, GetKeys and Delete calls never span slots. A single
// hot namespace therefore lives on one shard.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		prefix: DefaultKeyPrefix,
	}
}

// WithPrefix returns a copy of the store that uses prefix for its keys.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	c := *s
	c.prefix = prefix
	return &c
}

func (s *RedisStore) key(namespace, key string) string {
	return s.prefix + "{ns:" + namespace + "}:" + key
}

// Get retrieves a cache entry by key.
func (s *RedisStore) Get(ctx context.Context, key, namespace string) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.key(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeEntry(data)
}

// Set stores a cache entry. Redis removes it once ttl elapses.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration, namespace string) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	data, err := encodeValue(entry)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(namespace, key), data, redisTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// SetMulti writes all values in one transaction.
func (s *RedisStore) SetMulti(ctx context.Context, mapping map[string]any, ttl time.Duration, namespace string) error {
	encoded := make(map[string][]byte, len(mapping))
	for key, v := range mapping {
		data, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		encoded[s.key(namespace, key)] = data
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range encoded {
			pipe.Set(ctx, k, data, redisTTL(ttl))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set multi: %w", err)
	}
	return nil
}

// Incr creates the counter with initial if missing and adds delta, as one
// MULTI/EXEC transaction.
func (s *RedisStore) Incr(ctx context.Context, key string, delta int64, namespace string, initial int64) (int64, error) {
	k := s.key(namespace, key)

	var incr *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, initial, 0)
		incr = pipe.IncrBy(ctx, k, delta)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val(), nil
}

// GetKey returns the string stored under key.
func (s *RedisStore) GetKey(ctx context.Context, key, namespace string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(namespace, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// GetKeys resolves keys with a single MGET.
func (s *RedisStore) GetKeys(ctx context.Context, namespace string, keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(namespace, key)
	}
	values, err := s.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make(map[string]string, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(namespace, key)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// redisTTL maps "no expiry" to go-redis' zero expiration.
func redisTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
