package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Entry is a frozen snapshot of a cacheable response.
type Entry struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Header holds the response headers, without Set-Cookie and Content-Length
	Header http.Header `json:"headers"`

	// Body is the complete response body
	Body []byte `json:"body"`

	// ETag validates If-None-Match
	ETag string `json:"etag,omitempty"`

	// LastModified validates If-Modified-Since, whole seconds
	LastModified time.Time `json:"last_modified"`

	// CachedAt is when the entry was built
	CachedAt time.Time `json:"cached_at"`
}

// strippedHeaders are never stored: cookies are per user and the
// length is recomputed when the entry is served.
var strippedHeaders = []string{"Set-Cookie", "Content-Length"}

// NewEntry snapshots a response. Header and body are copied. ETag and
// LastModified are taken from the corresponding headers when present.
func NewEntry(statusCode int, header http.Header, body []byte) *Entry {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	for _, name := range strippedHeaders {
		h.Del(name)
	}

	e := &Entry{
		StatusCode: statusCode,
		Header:     h,
		Body:       append([]byte(nil), body...),
		ETag:       h.Get("ETag"),
		CachedAt:   time.Now(),
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			e.LastModified = t.UTC()
		}
	}
	return e
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// Validate applies the conditional request headers of r to the entry and
// returns http.StatusNotModified or http.StatusOK.
func (e *Entry) Validate(r *http.Request) int {
	if e.ETag != "" {
		if inm := r.Header.Get("If-None-Match"); inm != "" && etagMatches(inm, e.ETag) {
			return http.StatusNotModified
		}
	}
	if !e.LastModified.IsZero() {
		if ims := r.Header.Get("If-Modified-Since"); ims != "" {
			// An unparsable date counts as no validator.
			if t, err := http.ParseTime(ims); err == nil && !t.Before(e.LastModified.Truncate(time.Second)) {
				return http.StatusNotModified
			}
		}
	}
	return http.StatusOK
}

// Serve validates r against the entry and writes either a 304 with the
// entry headers and no body, or the full entry. It returns the status sent.
func (e *Entry) Serve(w http.ResponseWriter, r *http.Request) int {
	status := e.Validate(r)

	h := w.Header()
	for name, values := range e.Header {
		h[name] = append([]string(nil), values...)
	}

	if status == http.StatusNotModified {
		h.Del("Content-Length")
		w.WriteHeader(status)
		return status
	}

	h.Set("Content-Length", strconv.Itoa(len(e.Body)))
	w.WriteHeader(e.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = w.Write(e.Body)
	}
	return e.StatusCode
}

// etagMatches reports whether the If-None-Match list contains tag using
// weak comparison.
func etagMatches(list, tag string) bool {
	tag = weak(tag)
	for _, candidate := range strings.Split(list, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || (candidate != "" && weak(candidate) == tag) {
			return true
		}
	}
	return false
}

func weak(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "W/")
}
