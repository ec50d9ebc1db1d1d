package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/httpcache/pkg/cache"
)

// backend is the opened store plus what it takes to maintain and close it.
type backend struct {
	store cache.KeyStore
	purge func(ctx context.Context) (int64, error)
	close func() error
}

// openStore connects the store selected by cfg.Store.
func openStore(ctx context.Context, cfg Config) (*backend, error) {
	switch cfg.Store {
	case storeMemory:
		store := cache.NewMemoryStore()
		return &backend{
			store: store,
			purge: func(context.Context) (int64, error) { return int64(store.Purge()), nil },
			close: func() error { return nil },
		}, nil

	case storeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		// Redis expires keys itself.
		return &backend{store: cache.NewRedisStore(client), close: client.Close}, nil

	case storeSQLite:
		store, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{store: store, purge: store.Purge, close: store.Close}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// runPurge removes expired entries every interval until ctx is done.
func (b *backend) runPurge(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	if b.purge == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.purge(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Purge of expired entries failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("removed", n).Msg("Expired entries purged")
			}
		}
	}
}
