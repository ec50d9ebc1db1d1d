package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable with HTTPCACHE_STORE.
const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

// Config holds the server configuration, read from the environment.
type Config struct {
	Addr            string        `env:"HTTPCACHE_ADDR" envDefault:":8080"`
	Store           string        `env:"HTTPCACHE_STORE" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath      string        `env:"HTTPCACHE_SQLITE_PATH" envDefault:"httpcache.db"`
	Profiles        string        `env:"HTTPCACHE_PROFILES"`
	PurgeInterval   time.Duration `env:"HTTPCACHE_PURGE_INTERVAL" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"HTTPCACHE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY" envDefault:"false"`
}

// loadConfig parses the environment and validates the result.
func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the store selection and its settings.
func (c Config) Validate() error {
	switch c.Store {
	case storeMemory:
	case storeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s store", storeRedis)
		}
	case storeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("HTTPCACHE_SQLITE_PATH is required for the %s store", storeSQLite)
		}
	default:
		return fmt.Errorf("unknown HTTPCACHE_STORE %q (want memory, redis or sqlite)", c.Store)
	}
	if c.PurgeInterval < 0 {
		return fmt.Errorf("HTTPCACHE_PURGE_INTERVAL must not be negative")
	}
	return nil
}
