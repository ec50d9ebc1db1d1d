//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/httpcache/internal/testutil"
	"github.com/Sternrassler/httpcache/pkg/cache"
	"github.com/Sternrassler/httpcache/pkg/middleware"
	"github.com/Sternrassler/httpcache/pkg/profile"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// cachedServer starts a test server running backend behind the cache
// middleware on a Redis store.
func cachedServer(t *testing.T, redisClient *redis.Client, backend http.Handler) string {
	t.Helper()

	logger := zerolog.Nop()
	m, err := middleware.New(middleware.Config{
		Store:  cache.NewRedisStore(redisClient),
		Logger: &logger,
	})
	if err != nil {
		t.Fatalf("Failed to create middleware: %v", err)
	}
	return testutil.NewServer(t, m.Handler(backend)).URL
}

func get(t *testing.T, url string, header map[string]string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return resp, string(body)
}

func withProfile(body string, p *profile.Profile, setup ...func(r *http.Request)) testutil.BackendResponse {
	resp := testutil.NewTextResponse(body)
	resp.Setup = func(r *http.Request) {
		middleware.SetProfile(r, p)
		for _, fn := range setup {
			fn(r)
		}
	}
	return resp
}

// TestCacheHit tests the complete flow: miss → backend → Redis → hit.
func TestCacheHit(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewBackend()
	p := profile.MustNew(profile.Server, profile.Options{Duration: time.Minute})
	backend.SetResponse("/reports", withProfile(`{"reports": 3}`, p))

	url := cachedServer(t, redisClient, backend)

	_, first := get(t, url+"/reports", nil)
	resp, second := get(t, url+"/reports", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if first != second {
		t.Errorf("Expected identical bodies, got %q and %q", first, second)
	}
	if calls := backend.Calls("/reports"); calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", calls)
	}

	ttl, err := redisClient.TTL(context.Background(), cache.DefaultKeyPrefix+"{ns:}:G/reports").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL within one minute, got %v", ttl)
	}
}

// TestNotModified tests 304 responses for cached entries with an ETag.
func TestNotModified(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewBackend()
	p := profile.MustNew(profile.Public, profile.Options{Duration: time.Minute, ETagFunc: profile.XXHashETag})
	backend.SetResponse("/items", withProfile("payload", p))

	url := cachedServer(t, redisClient, backend)

	resp, _ := get(t, url+"/items", nil)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("Expected ETag header")
	}

	resp, body := get(t, url+"/items", map[string]string{"If-None-Match": etag})
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", resp.StatusCode)
	}
	if body != "" {
		t.Errorf("Expected empty body, got %q", body)
	}
	if calls := backend.Calls("/items"); calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", calls)
	}
}

// TestInvalidation tests dependency groups stored in Redis.
func TestInvalidation(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewBackend()
	p := profile.MustNew(profile.Server, profile.Options{Duration: time.Minute, Namespace: "catalog"})
	depends := func(r *http.Request) { middleware.AddDependency(r, "products") }
	backend.SetResponse("/a", withProfile("a", p, depends))
	backend.SetResponse("/b", withProfile("b", p, depends))

	url := cachedServer(t, redisClient, backend)

	for i := 0; i < 2; i++ {
		get(t, url+"/a", nil)
		get(t, url+"/b", nil)
	}
	if backend.TotalCalls() != 2 {
		t.Fatalf("Expected 2 backend calls before invalidation, got %d", backend.TotalCalls())
	}

	removed, err := cache.Invalidate(context.Background(), cache.NewRedisStore(redisClient), "products", "catalog")
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed responses, got %d", removed)
	}

	get(t, url+"/a", nil)
	get(t, url+"/b", nil)
	if backend.TotalCalls() != 4 {
		t.Errorf("Expected 4 backend calls after invalidation, got %d", backend.TotalCalls())
	}
}

// TestVaryHeaders tests that request headers named by the profile split
// the cache key.
func TestVaryHeaders(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewBackend()
	p := profile.MustNew(profile.Server, profile.Options{Duration: time.Minute, VaryHeaders: []string{"Accept-Language"}})
	backend.SetResponse("/greeting", withProfile("hello", p))

	url := cachedServer(t, redisClient, backend)

	for _, lang := range []string{"en", "de", "en", "de"} {
		get(t, url+"/greeting", map[string]string{"Accept-Language": lang})
	}
	if calls := backend.Calls("/greeting"); calls != 2 {
		t.Errorf("Expected 2 backend calls, got %d", calls)
	}
}

// TestRedisOutage tests that requests are still answered when Redis goes away.
func TestRedisOutage(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewBackend()
	p := profile.MustNew(profile.Server, profile.Options{Duration: time.Minute})
	backend.SetResponse("/status", withProfile("up", p))

	url := cachedServer(t, redisClient, backend)
	get(t, url+"/status", nil)

	redisClient.Close()

	resp, body := get(t, url+"/status", nil)
	if resp.StatusCode != http.StatusOK || body != "up" {
		t.Errorf("Expected fresh 200 'up', got %d %q", resp.StatusCode, body)
	}
	if calls := backend.Calls("/status"); calls != 2 {
		t.Errorf("Expected 2 backend calls, got %d", calls)
	}
}
