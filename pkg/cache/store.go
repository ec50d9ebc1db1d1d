package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrUnsupportedValue is returned by SetMulti for values that are
	// neither *Entry nor string
	ErrUnsupportedValue = errors.New("unsupported cache value")
)

// Store persists cache entries and dependency bookkeeping.
//
// A ttl of 0 means no expiry. Implementations must be safe for concurrent
// use, and Incr must be atomic.
type Store interface {
	// Get returns the entry stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key, namespace string) (*Entry, error)

	// Set stores entry under key.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration, namespace string) error

	// SetMulti stores several values with one ttl. Values are *Entry or
	// string (dependency generation keys pointing at request keys).
	SetMulti(ctx context.Context, mapping map[string]any, ttl time.Duration, namespace string) error

	// Incr adds delta to the counter under key and returns the new value.
	// A missing counter is created as initial+delta.
	Incr(ctx context.Context, key string, delta int64, namespace string, initial int64) (int64, error)
}

// KeyStore is a Store that can resolve and delete dependency keys.
type KeyStore interface {
	Store

	// GetKey returns the string value stored under key, or ErrCacheMiss.
	GetKey(ctx context.Context, key, namespace string) (string, error)

	// GetKeys resolves several keys in one round trip. Missing or expired
	// keys are left out of the result.
	GetKeys(ctx context.Context, namespace string, keys ...string) (map[string]string, error)

	// Delete removes keys, counters included. Missing keys are ignored.
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// encodeValue serializes a SetMulti value for byte oriented stores.
func encodeValue(v any) ([]byte, error) {
	switch v := v.(type) {
	case *Entry:
		if v == nil {
			return nil, fmt.Errorf("%w: nil entry", ErrUnsupportedValue)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal cache entry: %w", err)
		}
		return data, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

func expiresAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
