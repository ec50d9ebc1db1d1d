// Package profile defines cache profiles: immutable configuration that
// selects where a response may be cached, for how long, which request
// facets make up its cache key, and produces a cache policy per response.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/httpcache/pkg/policy"
)

// ErrInvalidProfile is returned when a profile cannot be constructed.
var ErrInvalidProfile = errors.New("invalid cache profile")

// Location selects where a response may be cached.
type Location int

const (
	// None disables caching on both server and client.
	None Location = iota

	// Server caches on the server only; clients see no-cache.
	Server

	// Client lets the client cache privately; nothing is stored server side.
	Client

	// Both caches on the server and lets the client cache privately.
	Both

	// Public caches on the server and in any shared cache.
	Public
)

var locationNames = map[Location]string{
	None:   "none",
	Server: "server",
	Client: "client",
	Both:   "both",
	Public: "public",
}

// String returns the configuration name of the location.
func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// ParseLocation parses a configuration name such as "server".
func ParseLocation(s string) (Location, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range locationNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported location %q", ErrInvalidProfile, s)
}

// Cacheability maps the location to its HTTP cacheability class.
func (l Location) Cacheability() policy.Cacheability {
	switch l {
	case Client, Both:
		return policy.Private
	case Public:
		return policy.Public
	default:
		return policy.NoCache
	}
}

// Options configures a profile. The zero value of every field is a
// sensible default except Duration, which most locations require.
type Options struct {
	// Duration is the server side TTL and the default client max age.
	Duration time.Duration

	// HTTPMaxAge overrides the max-age / Expires horizon sent to clients.
	HTTPMaxAge *time.Duration

	// NoStore adds no-store to every policy.
	NoStore bool

	// ETagFunc computes an ETag over the response body. Public only.
	ETagFunc ETagFunc

	// HTTPVary lists request headers advertised via Vary. Public only.
	HTTPVary []string

	// Request facets included in the server side cache key.
	VaryHeaders []string
	VaryQuery   []string
	VaryForm    []string
	VaryCookies []string
	VaryEnviron []string

	// Namespace partitions the store.
	Namespace string

	// Disabled turns the profile into a pass-through.
	Disabled bool
}

// policySource produces the policy for one response.
type policySource interface {
	policy() *policy.Policy
}

// fixedPolicy serves clones of a template built once.
type fixedPolicy struct {
	template *policy.Policy
}

func (f fixedPolicy) policy() *policy.Policy {
	return f.template.Clone()
}

// clientPolicy builds a time dependent policy per call.
type clientPolicy struct {
	cacheability policy.Cacheability
	maxAge       time.Duration
	noStore      bool
	vary         []string
}

func (c clientPolicy) policy() *policy.Policy {
	p := policy.New(c.cacheability)
	if c.noStore {
		p.NoStore()
	}
	t := now()
	// Legality of every directive below was checked in New.
	_ = p.LastModified(t)
	_ = p.Expires(t.Add(c.maxAge))
	_ = p.MaxAge(c.maxAge)
	if len(c.vary) > 0 {
		_ = p.Vary(c.vary...)
	}
	return p
}

var now = time.Now

// Profile is a cache profile. It is immutable after construction and safe
// for concurrent use.
type Profile struct {
	location    Location
	duration    time.Duration
	httpMaxAge  time.Duration
	noStore     bool
	etagFunc    ETagFunc
	httpVary    []string
	requestVary *RequestVary
	namespace   string
	enabled     bool
	source      policySource
}

// New validates opts and builds a profile for location.
func New(location Location, opts Options) (*Profile, error) {
	if _, ok := locationNames[location]; !ok {
		return nil, fmt.Errorf("%w: unsupported location %d", ErrInvalidProfile, int(location))
	}

	p := &Profile{
		location:  location,
		namespace: opts.Namespace,
		enabled:   !opts.Disabled,
	}
	if !p.enabled {
		return p, nil
	}

	if opts.Duration < 0 {
		return nil, fmt.Errorf("%w: negative duration %s", ErrInvalidProfile, opts.Duration)
	}
	if location != None && location != Server && opts.Duration <= 0 {
		return nil, fmt.Errorf("%w: location %s requires a positive duration", ErrInvalidProfile, location)
	}

	cacheability := location.Cacheability()
	if len(opts.HTTPVary) > 0 && cacheability != policy.Public {
		return nil, fmt.Errorf("%w: http vary requires public location, got %s", ErrInvalidProfile, location)
	}
	if opts.ETagFunc != nil && cacheability != policy.Public {
		return nil, fmt.Errorf("%w: etag requires public location, got %s", ErrInvalidProfile, location)
	}

	p.duration = opts.Duration
	p.httpMaxAge = opts.Duration
	if opts.HTTPMaxAge != nil {
		if *opts.HTTPMaxAge < 0 {
			return nil, fmt.Errorf("%w: negative http max age %s", ErrInvalidProfile, *opts.HTTPMaxAge)
		}
		p.httpMaxAge = *opts.HTTPMaxAge
	}
	p.noStore = opts.NoStore
	p.etagFunc = opts.ETagFunc
	p.httpVary = append([]string(nil), opts.HTTPVary...)

	if location != None && location != Client {
		p.requestVary = NewRequestVary(VaryOptions{
			Headers: opts.VaryHeaders,
			Query:   opts.VaryQuery,
			Form:    opts.VaryForm,
			Cookies: opts.VaryCookies,
			Environ: opts.VaryEnviron,
		})
	}

	if cacheability == policy.NoCache {
		template := policy.New(cacheability)
		if opts.NoStore {
			template.NoStore()
		}
		p.source = fixedPolicy{template: template}
	} else {
		p.source = clientPolicy{
			cacheability: cacheability,
			maxAge:       p.httpMaxAge,
			noStore:      opts.NoStore,
			vary:         p.httpVary,
		}
	}

	return p, nil
}

// MustNew is like New but panics on error.
func MustNew(location Location, opts Options) *Profile {
	p, err := New(location, opts)
	if err != nil {
		panic(err)
	}
	return p
}

// CachePolicy returns a fresh policy for one response, or nil when the
// profile is disabled.
func (p *Profile) CachePolicy() *policy.Policy {
	if !p.enabled {
		return nil
	}
	return p.source.policy()
}

// Location returns the configured location.
func (p *Profile) Location() Location { return p.location }

// Cacheability returns the HTTP cacheability class of the profile.
func (p *Profile) Cacheability() policy.Cacheability { return p.location.Cacheability() }

// Duration returns the server side TTL.
func (p *Profile) Duration() time.Duration { return p.duration }

// HTTPMaxAge returns the horizon advertised to clients.
func (p *Profile) HTTPMaxAge() time.Duration { return p.httpMaxAge }

// NoStore reports whether policies carry no-store.
func (p *Profile) NoStore() bool { return p.noStore }

// ETagFunc returns the configured ETag function, nil if none.
func (p *Profile) ETagFunc() ETagFunc { return p.etagFunc }

// RequestVary returns the key strategy, nil when no server side lookup
// is performed for this profile.
func (p *Profile) RequestVary() *RequestVary { return p.requestVary }

// Namespace returns the store partition.
func (p *Profile) Namespace() string { return p.namespace }

// Enabled reports whether the profile intercepts responses at all.
func (p *Profile) Enabled() bool { return p.enabled }
