// Package cache provides the storage side of the HTTP response cache:
// frozen response entries, conditional validation, pluggable stores and
// dependency based invalidation.
//
// # Stores
//
// Three Store implementations are bundled, all of them KeyStore:
//
//   - MemoryStore: in-process map guarded by a mutex
//   - RedisStore: go-redis client, JSON entries, keys prefixed with "httpcache:"
//   - SQLiteStore: pure Go SQLite, entries and counters in separate tables
//
// A ttl of 0 stores without expiry. Incr is atomic in every store.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := cache.NewRedisStore(redisClient)
//
//	entry := cache.NewEntry(http.StatusOK, header, body)
//	if err := store.Set(ctx, "G/items", entry, time.Minute, ""); err != nil {
//		return err
//	}
//
//	entry, err := store.Get(ctx, "G/items", "")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// compute fresh
//	}
//
// # Conditional Requests
//
// Entry.Validate answers If-None-Match (weak comparison, "*" matches)
// before If-Modified-Since. Entry.Serve writes either a 304 carrying the
// entry headers without Content-Length, or the full entry.
//
// # Dependencies
//
// A response that depends on a group g is stored together with a
// generation key g+N pointing at its request key, where N comes from
// NextKey. Invalidate resolves g1..gN and deletes everything:
//
//	removed, err := cache.Invalidate(ctx, store, "products", "")
//
// # Metrics
//
//   - httpcache_hits_total{namespace} - Responses served from cache
//   - httpcache_misses_total{namespace} - Misses on known routes
//   - httpcache_not_modified_total - 304 responses
//   - httpcache_stores_total{namespace} - Responses stored
//   - httpcache_store_errors_total{operation} - Store operation errors
//   - httpcache_invalidations_total - Dependency invalidations
package cache
