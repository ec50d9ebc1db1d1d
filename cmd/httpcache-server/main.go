// Command httpcache-server runs the cache middleware in front of a small
// demo API, with Prometheus metrics and health endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/httpcache/pkg/logging"
	"github.com/Sternrassler/httpcache/pkg/profile"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("Failed to open store")
	}
	defer store.close()
	logger.Info().Str("store", cfg.Store).Msg("Store opened")

	var profiles map[string]*profile.Profile
	if cfg.Profiles != "" {
		if profiles, err = profile.LoadProfiles(cfg.Profiles); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Profiles).Msg("Failed to load profiles")
		}
		logger.Info().Str("file", cfg.Profiles).Int("count", len(profiles)).Msg("Profiles loaded")
	}

	srv, err := newServer(store.store, profiles, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	go store.runPurge(ctx, cfg.PurgeInterval, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("Starting cache server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
