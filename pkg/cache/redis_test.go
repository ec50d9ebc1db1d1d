package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none
// is reachable. The container based variant lives in redis_integration_test.go.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewRedisStore(client)
	if store == nil {
		t.Fatal("NewRedisStore returned nil")
	}
	if store.redis != client {
		t.Error("RedisStore client not set correctly")
	}
	if store.prefix != DefaultKeyPrefix {
		t.Errorf("prefix = %q, want %q", store.prefix, DefaultKeyPrefix)
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestRedisStore_Key(t *testing.T) {
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))

	if got := store.key("ns", "G/items"); got != "httpcache:{ns:ns}:G/items" {
		t.Errorf("key() = %q", got)
	}
	if got := store.WithPrefix("app:").key("", "G/items"); got != "app:{ns:}:G/items" {
		t.Errorf("prefixed key() = %q", got)
	}
}

func TestRedisStore_KeysShareNamespaceSlot(t *testing.T) {
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))

	tag := func(k string) string {
		start := strings.Index(k, "{")
		if start < 0 {
			t.Fatalf("key %q has no hash tag", k)
		}
		end := strings.Index(k[start:], "}")
		if end <= 1 {
			t.Fatalf("key %q has an empty hash tag", k)
		}
		return k[start+1 : start+end]
	}

	for _, ns := range []string{"", "tenant"} {
		want := tag(store.key(ns, "G/items"))
		for _, key := range []string{"items", "items1", "G/other?x={y}"} {
			if got := tag(store.key(ns, key)); got != want {
				t.Errorf("namespace %q: key %q tagged %q, want %q", ns, key, got, want)
			}
		}
	}
	if tag(store.key("a", "k")) == tag(store.key("b", "k")) {
		t.Error("distinct namespaces share a hash tag")
	}
}

func TestRedisStore(t *testing.T) {
	client := setupTestRedis(t)

	runStoreSuite(t, func(t *testing.T) KeyStore {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("Failed to flush test DB: %v", err)
		}
		return NewRedisStore(client)
	})
}

func TestRedisStore_TTL(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "G/items", testEntry(), 5*time.Minute, ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ttl := client.TTL(ctx, "httpcache:{ns:}:G/items").Val()
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Errorf("TTL = %v, want (0, 5m]", ttl)
	}

	if err := store.Set(ctx, "G/forever", testEntry(), 0, ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := client.TTL(ctx, "httpcache:{ns:}:G/forever").Val(); ttl != -1 {
		t.Errorf("TTL = %v, want -1 (no expiry)", ttl)
	}
}

func TestRedisStore_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	client.Set(ctx, "httpcache:{ns:}:G/broken", "not json", 0)

	_, err := store.Get(ctx, "G/broken", "")
	if err == nil || !strings.Contains(err.Error(), ErrInvalidEntry.Error()) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestRedisStore_SetNilEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)

	err := store.Set(context.Background(), "G/items", nil, time.Minute, "")
	if err == nil {
		t.Error("Set with nil entry should return error")
	}
}
