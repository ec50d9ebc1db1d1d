package middleware

import (
	"context"
	"net/http"

	"github.com/Sternrassler/httpcache/pkg/policy"
	"github.com/Sternrassler/httpcache/pkg/profile"
)

// Response holds the cache controls a downstream handler sets for the
// response it is producing.
type Response struct {
	profile      *profile.Profile
	policy       *policy.Policy
	dependencies []string
}

// Profile returns the profile set for the response, or nil.
func (c *Response) Profile() *profile.Profile { return c.profile }

// Dependencies returns the dependency groups of the response.
func (c *Response) Dependencies() []string { return c.dependencies }

type responseKey struct{}

func withResponse(ctx context.Context, c *Response) context.Context {
	return context.WithValue(ctx, responseKey{}, c)
}

// Controls returns the cache controls of the request, or nil when the
// request is not running behind the caching middleware.
func Controls(r *http.Request) *Response {
	c, _ := r.Context().Value(responseKey{}).(*Response)
	return c
}

// SetProfile opts the response into caching with p.
func SetProfile(r *http.Request, p *profile.Profile) {
	if c := Controls(r); c != nil {
		c.profile = p
	}
}

// Policy returns the policy of the response, populating it from the
// profile on first access. It returns nil when no profile is set or the
// profile is disabled, and outside the middleware.
func Policy(r *http.Request) *policy.Policy {
	c := Controls(r)
	if c == nil {
		return nil
	}
	if c.policy == nil && c.profile != nil {
		c.policy = c.profile.CachePolicy()
	}
	return c.policy
}

// SetPolicy replaces the policy of the response.
func SetPolicy(r *http.Request, p *policy.Policy) {
	if c := Controls(r); c != nil {
		c.policy = p
	}
}

// AddDependency ties the stored response to dependency groups, so that
// cache.Invalidate on any of them removes it.
func AddDependency(r *http.Request, groups ...string) {
	if c := Controls(r); c != nil {
		c.dependencies = append(c.dependencies, groups...)
	}
}

// WithProfile is route middleware that sets p on every response of the
// wrapped handler. Handlers may still override it with SetProfile.
func WithProfile(p *profile.Profile) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetProfile(r, p)
			next.ServeHTTP(w, r)
		})
	}
}
