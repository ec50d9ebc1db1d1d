package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/httpcache/pkg/cache"
)

// ErrInjected is returned by FailingStore for failing operations.
var ErrInjected = errors.New("injected store failure")

// FailingStore wraps a store and fails selected operations.
type FailingStore struct {
	cache.KeyStore

	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

// NewFailingStore wraps inner. Nothing fails until Fail is called.
func NewFailingStore(inner cache.KeyStore) *FailingStore {
	return &FailingStore{
		KeyStore: inner,
		fail:     make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// Fail makes the named operations ("get", "set", "set_multi", "incr",
// "get_keys")
// return ErrInjected.
func (s *FailingStore) Fail(ops ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		s.fail[op] = true
	}
}

// Heal clears all injected failures.
func (s *FailingStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = make(map[string]bool)
}

// Calls returns how often op was invoked.
func (s *FailingStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *FailingStore) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.fail[op] {
		return ErrInjected
	}
	return nil
}

func (s *FailingStore) Get(ctx context.Context, key, namespace string) (*cache.Entry, error) {
	if err := s.check("get"); err != nil {
		return nil, err
	}
	return s.KeyStore.Get(ctx, key, namespace)
}

func (s *FailingStore) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration, namespace string) error {
	if err := s.check("set"); err != nil {
		return err
	}
	return s.KeyStore.Set(ctx, key, entry, ttl, namespace)
}

func (s *FailingStore) SetMulti(ctx context.Context, mapping map[string]any, ttl time.Duration, namespace string) error {
	if err := s.check("set_multi"); err != nil {
		return err
	}
	return s.KeyStore.SetMulti(ctx, mapping, ttl, namespace)
}

func (s *FailingStore) Incr(ctx context.Context, key string, delta int64, namespace string, initial int64) (int64, error) {
	if err := s.check("incr"); err != nil {
		return 0, err
	}
	return s.KeyStore.Incr(ctx, key, delta, namespace, initial)
}

func (s *FailingStore) GetKeys(ctx context.Context, namespace string, keys ...string) (map[string]string, error) {
	if err := s.check("get_keys"); err != nil {
		return nil, err
	}
	return s.KeyStore.GetKeys(ctx, namespace, keys...)
}
