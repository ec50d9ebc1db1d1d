package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value   any // *Entry, string or int64
	expires time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && now.After(i.expires)
}

// MemoryStore is an in-process KeyStore.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// lookup returns a live item, dropping it if expired. Caller holds mu.
func (m *MemoryStore) lookup(k string) (memoryItem, bool) {
	item, ok := m.items[k]
	if !ok {
		return item, false
	}
	if item.expired(time.Now()) {
		delete(m.items, k)
		return item, false
	}
	return item, true
}

// Get retrieves a cache entry by key.
func (m *MemoryStore) Get(_ context.Context, key, namespace string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lookup(memoryKey(namespace, key))
	if !ok {
		return nil, ErrCacheMiss
	}
	entry, ok := item.value.(*Entry)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrInvalidEntry, key, item.value)
	}
	return entry.Clone(), nil
}

// Set stores a copy of entry.
func (m *MemoryStore) Set(_ context.Context, key string, entry *Entry, ttl time.Duration, namespace string) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[memoryKey(namespace, key)] = memoryItem{value: entry.Clone(), expires: expiresAt(ttl)}
	return nil
}

// SetMulti stores every value or none of them.
func (m *MemoryStore) SetMulti(_ context.Context, mapping map[string]any, ttl time.Duration, namespace string) error {
	items := make(map[string]memoryItem, len(mapping))
	expires := expiresAt(ttl)
	for key, v := range mapping {
		switch v := v.(type) {
		case *Entry:
			if v == nil {
				return fmt.Errorf("%w: nil entry for %q", ErrUnsupportedValue, key)
			}
			items[memoryKey(namespace, key)] = memoryItem{value: v.Clone(), expires: expires}
		case string:
			items[memoryKey(namespace, key)] = memoryItem{value: v, expires: expires}
		default:
			return fmt.Errorf("%w: %T for %q", ErrUnsupportedValue, v, key)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, item := range items {
		m.items[k] = item
	}
	return nil
}

// Incr atomically adjusts a counter.
func (m *MemoryStore) Incr(_ context.Context, key string, delta int64, namespace string, initial int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(namespace, key)
	item, ok := m.lookup(k)
	if !ok {
		m.items[k] = memoryItem{value: initial + delta}
		return initial + delta, nil
	}
	n, ok := item.value.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a counter", ErrInvalidEntry, key)
	}
	item.value = n + delta
	m.items[k] = item
	return n + delta, nil
}

// GetKey returns the string stored under key.
func (m *MemoryStore) GetKey(_ context.Context, key, namespace string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lookup(memoryKey(namespace, key))
	if !ok {
		return "", ErrCacheMiss
	}
	s, ok := item.value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q holds %T", ErrInvalidEntry, key, item.value)
	}
	return s, nil
}

// GetKeys returns the strings stored under keys.
func (m *MemoryStore) GetKeys(_ context.Context, namespace string, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		item, ok := m.lookup(memoryKey(namespace, key))
		if !ok {
			continue
		}
		s, ok := item.value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T", ErrInvalidEntry, key, item.value)
		}
		out[key] = s
	}
	return out, nil
}

// Delete removes keys.
func (m *MemoryStore) Delete(_ context.Context, namespace string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, memoryKey(namespace, key))
	}
	return nil
}

// Len returns the number of items, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Purge drops expired items and returns how many were removed.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, item := range m.items {
		if item.expired(now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}
