package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/httpcache/pkg/cache"
	"github.com/Sternrassler/httpcache/pkg/logging"
	"github.com/Sternrassler/httpcache/pkg/metrics"
	"github.com/Sternrassler/httpcache/pkg/middleware"
	"github.com/Sternrassler/httpcache/pkg/profile"
)

const itemsPageSize = 10

// defaultProfiles are used for the demo routes unless a profile file
// overrides them by name.
func defaultProfiles() map[string]*profile.Profile {
	return map[string]*profile.Profile{
		"clock": profile.MustNew(profile.Server, profile.Options{Duration: 15 * time.Second}),
		"items": profile.MustNew(profile.Public, profile.Options{
			Duration:  time.Minute,
			ETagFunc:  profile.XXHashETag,
			VaryQuery: []string{"page"},
		}),
	}
}

// server wires the cache middleware in front of the demo resources.
type server struct {
	store    cache.KeyStore
	cache    *middleware.Middleware
	profiles map[string]*profile.Profile
	logger   zerolog.Logger

	mu    sync.RWMutex
	items []string
}

func newServer(store cache.KeyStore, profiles map[string]*profile.Profile, logger zerolog.Logger) (*server, error) {
	merged := defaultProfiles()
	for name, p := range profiles {
		merged[name] = p
	}

	cacheLogger := logger.With().Str("component", "httpcache").Logger()
	m, err := middleware.New(middleware.Config{Store: store, Logger: &cacheLogger})
	if err != nil {
		return nil, err
	}

	return &server{
		store:    store,
		cache:    m,
		profiles: merged,
		logger:   logger,
	}, nil
}

// Router builds the HTTP routes.
func (s *server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.HTTPHandler(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(s.store))
	r.Handle("/metrics", metrics.Handler())
	r.Post("/invalidate/{group}", s.handleInvalidate)

	r.Route("/api", func(r chi.Router) {
		r.Use(metrics.Instrument)
		r.Use(s.cache.Handler)

		r.With(middleware.WithProfile(s.profiles["clock"])).Get("/clock", s.handleClock)
		r.With(middleware.WithProfile(s.profiles["items"])).Get("/items", s.handleListItems)
		r.Post("/items", s.handleAddItem)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler checks the store with a read; a miss counts as ready.
func readyHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := store.Get(ctx, "ready", "_ready"); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			hlog.FromRequest(r).Warn().Err(err).Msg("Store not ready")
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *server) handleClock(w http.ResponseWriter, r *http.Request) {
	middleware.AddDependency(r, "clock")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(time.Now().UTC().Format(time.RFC3339Nano)))
}

func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	s.mu.RLock()
	start := min((page-1)*itemsPageSize, len(s.items))
	end := min(start+itemsPageSize, len(s.items))
	items := append([]string{}, s.items[start:end]...)
	total := len(s.items)
	s.mu.RUnlock()

	middleware.AddDependency(r, "items")
	writeJSON(w, http.StatusOK, map[string]any{
		"page":  page,
		"total": total,
		"items": items,
	})
}

// handleAddItem appends an item and drops every cached items page.
func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.items = append(s.items, name)
	s.mu.Unlock()

	removed, err := cache.Invalidate(r.Context(), s.store, "items", s.profiles["items"].Namespace())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Invalidation of items failed")
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": name, "invalidated": removed})
}

// handleInvalidate drops every response recorded under a dependency group.
func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	namespace := r.URL.Query().Get("namespace")

	removed, err := cache.Invalidate(r.Context(), s.store, group, namespace)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("group", group).Msg("Invalidation failed")
		http.Error(w, "invalidation failed", http.StatusBadGateway)
		return
	}
	hlog.FromRequest(r).Info().Str("group", group).Int("removed", removed).Msg("Dependency group invalidated")
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
