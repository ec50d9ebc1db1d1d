// Package policy accumulates the cache related HTTP response headers
// (Cache-Control, Pragma, Expires, Last-Modified, ETag, Vary) for a single
// response and enforces which directives are legal for its cacheability.
package policy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cacheability is the class of a response as advertised in Cache-Control.
type Cacheability int

const (
	// NoCache marks a response that must not be reused without revalidation.
	NoCache Cacheability = iota

	// Private marks a response intended for a single user (no shared caches).
	Private

	// Public marks a response any cache may store.
	Public
)

// String returns the Cache-Control token for the cacheability.
func (c Cacheability) String() string {
	switch c {
	case NoCache:
		return "no-cache"
	case Private:
		return "private"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("cacheability(%d)", int(c))
	}
}

// Valid reports whether c is one of the supported classes.
func (c Cacheability) Valid() bool {
	return c == NoCache || c == Private || c == Public
}

// ErrInvalidDirective is returned by setters that are not legal
// for the policy's cacheability.
var ErrInvalidDirective = errors.New("invalid cache directive")

// DirectiveError describes a rejected directive.
type DirectiveError struct {
	Directive    string
	Cacheability Cacheability
	Reason       string
}

// Error implements the error interface.
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s is not valid for %s cacheability: %s",
		e.Directive, e.Cacheability, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidDirective).
func (e *DirectiveError) Unwrap() error {
	return ErrInvalidDirective
}

// Policy holds cache specific HTTP header values for one response.
// A Policy is not safe for concurrent mutation.
type Policy struct {
	cacheability Cacheability

	pragma       string
	expires      string
	lastModified string
	modified     time.Time
	etag         string
	vary         []string

	maxAge  int
	sMaxAge int

	noStore         bool
	mustRevalidate  bool
	proxyRevalidate bool
	noTransform     bool

	privateFields []string
	noCacheFields []string
	extensions    []string
}

// New creates a policy for the given cacheability.
// It panics on an unsupported cacheability value.
func New(cacheability Cacheability) *Policy {
	if !cacheability.Valid() {
		panic(fmt.Sprintf("policy: unsupported cacheability %d", int(cacheability)))
	}
	p := &Policy{
		cacheability: cacheability,
		maxAge:       -1,
		sMaxAge:      -1,
	}
	if cacheability == NoCache {
		p.pragma = "no-cache"
		p.expires = "-1"
	}
	return p
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	c := *p
	c.vary = cloneStrings(p.vary)
	c.privateFields = cloneStrings(p.privateFields)
	c.noCacheFields = cloneStrings(p.noCacheFields)
	c.extensions = cloneStrings(p.extensions)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func (p *Policy) failNoCache(directive string) error {
	if p.cacheability == NoCache {
		return &DirectiveError{Directive: directive, Cacheability: p.cacheability, Reason: "not allowed"}
	}
	return nil
}

func (p *Policy) requirePublic(directive string) error {
	if p.cacheability != Public {
		return &DirectiveError{Directive: directive, Cacheability: p.cacheability, Reason: "public cacheability only"}
	}
	return nil
}

// Cacheability returns the cacheability class of the policy.
func (p *Policy) Cacheability() Cacheability {
	return p.cacheability
}

// Private restricts the named fields to a single user.
// Only valid for public cacheability.
func (p *Policy) Private(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := p.requirePublic("private field(s)"); err != nil {
		return err
	}
	p.privateFields = append(p.privateFields, fields...)
	return nil
}

// NoCache forbids sending the named fields without revalidation.
// Not valid for no-cache cacheability.
func (p *Policy) NoCache(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := p.failNoCache("no-cache field(s)"); err != nil {
		return err
	}
	p.noCacheFields = append(p.noCacheFields, fields...)
	return nil
}

// NoStore adds the no-store directive.
func (p *Policy) NoStore() {
	p.noStore = true
}

// MustRevalidate adds must-revalidate. It fails if proxy-revalidate is set.
func (p *Policy) MustRevalidate() error {
	if p.proxyRevalidate {
		return &DirectiveError{Directive: "must-revalidate", Cacheability: p.cacheability, Reason: "proxy-revalidate is already set"}
	}
	p.mustRevalidate = true
	return nil
}

// ProxyRevalidate adds proxy-revalidate. It fails if must-revalidate is set.
func (p *Policy) ProxyRevalidate() error {
	if p.mustRevalidate {
		return &DirectiveError{Directive: "proxy-revalidate", Cacheability: p.cacheability, Reason: "must-revalidate is already set"}
	}
	p.proxyRevalidate = true
	return nil
}

// NoTransform adds the no-transform directive.
func (p *Policy) NoTransform() {
	p.noTransform = true
}

// AppendExtension appends a raw extension token to Cache-Control.
func (p *Policy) AppendExtension(extension string) {
	p.extensions = append(p.extensions, extension)
}

// MaxAge sets max-age. Sub-second precision is dropped.
func (p *Policy) MaxAge(d time.Duration) error {
	if err := p.failNoCache("max-age"); err != nil {
		return err
	}
	p.maxAge = seconds(d)
	return nil
}

// SMaxAge sets the shared cache max age.
func (p *Policy) SMaxAge(d time.Duration) error {
	if err := p.failNoCache("smax-age"); err != nil {
		return err
	}
	p.sMaxAge = seconds(d)
	return nil
}

func seconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Expires sets the Expires header.
func (p *Policy) Expires(when time.Time) error {
	if err := p.failNoCache("expires"); err != nil {
		return err
	}
	p.expires = FormatTime(when)
	return nil
}

// LastModified sets the Last-Modified header. The stored modification
// time is truncated to whole seconds, the precision of HTTP dates.
func (p *Policy) LastModified(when time.Time) error {
	if err := p.failNoCache("last-modified"); err != nil {
		return err
	}
	p.modified = when.UTC().Truncate(time.Second)
	p.lastModified = FormatTime(when)
	return nil
}

// ETag sets the entity tag. Only valid for public cacheability.
func (p *Policy) ETag(tag string) error {
	if err := p.requirePublic("etag"); err != nil {
		return err
	}
	p.etag = tag
	return nil
}

// Vary adds request header names to Vary. With no names, Vary is "*".
// Only valid for public cacheability.
func (p *Policy) Vary(headers ...string) error {
	if err := p.requirePublic("vary"); err != nil {
		return err
	}
	if len(headers) == 0 {
		p.vary = []string{"*"}
		return nil
	}
	p.vary = append(p.vary, headers...)
	return nil
}

// Modified returns the Last-Modified time, zero if unset.
func (p *Policy) Modified() time.Time {
	return p.modified
}

// IsNoStore reports whether no-store is set.
func (p *Policy) IsNoStore() bool { return p.noStore }

// IsMustRevalidate reports whether must-revalidate is set.
func (p *Policy) IsMustRevalidate() bool { return p.mustRevalidate }

// IsProxyRevalidate reports whether proxy-revalidate is set.
func (p *Policy) IsProxyRevalidate() bool { return p.proxyRevalidate }

// IsNoTransform reports whether no-transform is set.
func (p *Policy) IsNoTransform() bool { return p.noTransform }

// HTTPPragma returns the Pragma header value, empty if none.
func (p *Policy) HTTPPragma() string { return p.pragma }

// HTTPExpires returns the Expires header value, empty if none.
func (p *Policy) HTTPExpires() string { return p.expires }

// HTTPLastModified returns the Last-Modified header value, empty if none.
func (p *Policy) HTTPLastModified() string { return p.lastModified }

// HTTPETag returns the ETag header value, empty if none.
func (p *Policy) HTTPETag() string { return p.etag }

// HTTPVary returns the Vary header value, empty if none.
func (p *Policy) HTTPVary() string {
	return strings.Join(p.vary, ", ")
}

// HTTPCacheControl assembles the Cache-Control header value.
func (p *Policy) HTTPCacheControl() string {
	directives := []string{p.cacheability.String()}
	if len(p.privateFields) > 0 {
		directives = append(directives, `private="`+strings.Join(p.privateFields, ", ")+`"`)
	}
	if len(p.noCacheFields) > 0 {
		directives = append(directives, `no-cache="`+strings.Join(p.noCacheFields, ", ")+`"`)
	}
	if p.noStore {
		directives = append(directives, "no-store")
	}
	if p.mustRevalidate {
		directives = append(directives, "must-revalidate")
	} else if p.proxyRevalidate {
		directives = append(directives, "proxy-revalidate")
	}
	if p.noTransform {
		directives = append(directives, "no-transform")
	}
	if len(p.extensions) > 0 {
		directives = append(directives, strings.Join(p.extensions, ", "))
	}
	if p.maxAge >= 0 {
		directives = append(directives, "max-age="+strconv.Itoa(p.maxAge))
	}
	if p.sMaxAge >= 0 {
		directives = append(directives, "smax-age="+strconv.Itoa(p.sMaxAge))
	}
	return strings.Join(directives, ", ")
}

// Extend writes the policy headers into h.
func (p *Policy) Extend(h http.Header) {
	h.Set("Cache-Control", p.HTTPCacheControl())
	if p.pragma != "" {
		h.Set("Pragma", p.pragma)
	}
	if p.expires != "" {
		h.Set("Expires", p.expires)
	}
	if p.lastModified != "" {
		h.Set("Last-Modified", p.lastModified)
	}
	if p.etag != "" {
		h.Set("ETag", p.etag)
	}
	if len(p.vary) > 0 {
		h.Set("Vary", p.HTTPVary())
	}
}

// FormatTime formats t as an RFC 1123 HTTP date in GMT.
func FormatTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
