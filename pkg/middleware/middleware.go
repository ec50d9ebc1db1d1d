// Package middleware implements the caching net/http middleware.
//
// Downstream handlers opt a response into caching by setting a profile
// (SetProfile or the WithProfile route decorator). The middleware then
// renders the cache policy, stores 200 responses under the profile's
// request key and learns the profile for the route, so that later
// requests to the same route are answered from the store without
// invoking the handler.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/httpcache/pkg/cache"
	"github.com/Sternrassler/httpcache/pkg/logging"
	"github.com/Sternrassler/httpcache/pkg/policy"
	"github.com/Sternrassler/httpcache/pkg/profile"
)

// ErrStoreRequired is returned by New when Config.Store is nil.
var ErrStoreRequired = errors.New("cache store is required")

// Config holds middleware configuration.
type Config struct {
	// Store persists entries and dependency counters (required).
	Store cache.Store

	// RouteVary derives the route key used to learn profiles
	// (default: method initial + path).
	RouteVary *profile.RequestVary

	// Logger receives cache events (default: logging.NewLogger("httpcache")).
	Logger *zerolog.Logger
}

// Middleware is a caching middleware instance. It owns the route
// registry; separate instances learn routes independently.
type Middleware struct {
	store     cache.Store
	routeVary *profile.RequestVary
	logger    zerolog.Logger

	// routes maps route keys to the last profile seen for them.
	routes sync.Map
}

// New validates cfg and creates a middleware.
func New(cfg Config) (*Middleware, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}

	m := &Middleware{
		store:     cfg.Store,
		routeVary: cfg.RouteVary,
	}
	if m.routeVary == nil {
		m.routeVary = profile.NewRequestVary(profile.VaryOptions{})
	}
	if cfg.Logger != nil {
		m.logger = *cfg.Logger
	} else {
		m.logger = logging.NewLogger("httpcache")
	}
	return m, nil
}

// Handler wraps next with caching.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := keyRequest(r)
		routeKey := m.routeVary.Key(keys)

		if p, ok := m.route(routeKey); ok {
			if m.serveCached(w, keys, p) {
				return
			}
		}

		controls := &Response{}
		rec := newRecorder()
		next.ServeHTTP(rec, r.WithContext(withResponse(r.Context(), controls)))

		m.finish(w, keys, routeKey, rec, controls)
	})
}

// Profile returns the profile learned for a route key.
func (m *Middleware) Profile(routeKey string) (*profile.Profile, bool) {
	return m.route(routeKey)
}

func (m *Middleware) route(routeKey string) (*profile.Profile, bool) {
	v, ok := m.routes.Load(routeKey)
	if !ok {
		return nil, false
	}
	return v.(*profile.Profile), true
}

// serveCached answers r from the store. It reports false on a miss or a
// store failure, in which case nothing has been written to w.
func (m *Middleware) serveCached(w http.ResponseWriter, r *http.Request, p *profile.Profile) bool {
	requestKey := p.RequestVary().Key(r)
	ns := p.Namespace()

	entry, err := m.store.Get(r.Context(), requestKey, ns)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			cache.StoreErrors.WithLabelValues("get").Inc()
			m.logger.Warn().Err(err).Str("key", requestKey).Str("namespace", ns).
				Msg("Cache read failed, computing response")
		}
		cache.CacheMisses.WithLabelValues(ns).Inc()
		m.logger.Debug().Str("key", requestKey).Msg("Cache miss")
		return false
	}

	cache.CacheHits.WithLabelValues(ns).Inc()
	status := entry.Serve(w, r)
	if status == http.StatusNotModified {
		cache.NotModifiedResponses.Inc()
	}
	m.logger.Debug().Str("key", requestKey).Int("status_code", status).Bool("cache_hit", true).
		Msg("Served from cache")
	return true
}

// finish decorates, stores and emits a freshly computed response.
func (m *Middleware) finish(w http.ResponseWriter, r *http.Request, routeKey string, rec *recorder, c *Response) {
	p := c.profile
	if rec.StatusCode() != http.StatusOK || p == nil || !p.Enabled() {
		if c.policy != nil {
			c.policy.Extend(rec.Header())
		}
		rec.flush(w)
		return
	}

	pol := c.policy
	if pol == nil {
		pol = p.CachePolicy()
	}
	m.applyETag(p, pol, rec)
	pol.Extend(rec.Header())

	requestVary := p.RequestVary()
	if requestVary == nil {
		rec.flush(w)
		return
	}

	m.routes.Store(routeKey, p)

	requestKey := requestVary.Key(r)
	entry := cache.NewEntry(rec.StatusCode(), rec.Header(), rec.Body())
	entry.ETag = pol.HTTPETag()
	entry.LastModified = pol.Modified()

	// Store writes outlive a client that already went away.
	m.save(context.WithoutCancel(r.Context()), requestKey, entry, p, c.dependencies)

	if entry.Validate(r) == http.StatusNotModified {
		cache.NotModifiedResponses.Inc()
		entry.Serve(w, r)
		return
	}
	rec.flush(w)
}

// applyETag computes the profile's ETag over the body when the policy
// has none yet.
func (m *Middleware) applyETag(p *profile.Profile, pol *policy.Policy, rec *recorder) {
	etagFunc := p.ETagFunc()
	if etagFunc == nil || pol.HTTPETag() != "" {
		return
	}
	if err := pol.ETag(etagFunc(rec.chunks)); err != nil {
		m.logger.Debug().Err(err).Msg("ETag not applicable to policy")
	}
}

// save stores entry, together with one generation key per dependency
// group. Failures are logged and otherwise ignored.
func (m *Middleware) save(ctx context.Context, requestKey string, entry *cache.Entry, p *profile.Profile, dependencies []string) {
	ns := p.Namespace()
	ttl := p.Duration()

	if len(dependencies) == 0 {
		if err := m.store.Set(ctx, requestKey, entry, ttl, ns); err != nil {
			cache.StoreErrors.WithLabelValues("set").Inc()
			m.logger.Warn().Err(err).Str("key", requestKey).Msg("Cache write failed")
			return
		}
		cache.CacheStores.WithLabelValues(ns).Inc()
		m.logger.Debug().Str("key", requestKey).Dur("ttl", ttl).Msg("Response cached")
		return
	}

	mapping := make(map[string]any, len(dependencies)+1)
	mapping[requestKey] = entry
	for _, group := range dependencies {
		key, err := cache.NextKey(ctx, m.store, group, ns)
		if err != nil {
			cache.StoreErrors.WithLabelValues("incr").Inc()
			m.logger.Warn().Err(err).Str("dependency", group).Msg("Dependency generation failed")
			continue
		}
		mapping[key] = requestKey
	}

	if err := m.store.SetMulti(ctx, mapping, ttl, ns); err != nil {
		cache.StoreErrors.WithLabelValues("set_multi").Inc()
		m.logger.Warn().Err(err).Str("key", requestKey).Msg("Cache write failed")
		return
	}
	cache.CacheStores.WithLabelValues(ns).Inc()
	m.logger.Debug().Str("key", requestKey).Strs("dependencies", dependencies).Dur("ttl", ttl).
		Msg("Response cached")
}
