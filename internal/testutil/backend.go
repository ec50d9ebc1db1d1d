// Package testutil provides testing utilities for the HTTP cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// BackendResponse defines the behavior of one backend route.
type BackendResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string

	// Setup runs before the response is written, typically to set cache
	// controls on the request.
	Setup func(r *http.Request)
}

// Backend is a counting handler standing in for the application behind
// the cache.
type Backend struct {
	mu     sync.RWMutex
	routes map[string]BackendResponse
	calls  map[string]int

	// LastRequestHeader is the header of the most recent request
	LastRequestHeader http.Header
}

// NewBackend creates a backend with no routes. Unknown paths answer 404.
func NewBackend() *Backend {
	return &Backend{
		routes: make(map[string]BackendResponse),
		calls:  make(map[string]int),
	}
}

// SetResponse configures the response for a path.
func (b *Backend) SetResponse(path string, resp BackendResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[path] = resp
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.URL.Path]++
	b.LastRequestHeader = r.Header.Clone()
	resp, ok := b.routes[r.URL.Path]
	b.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Setup != nil {
		resp.Setup(r)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Calls returns how often path was requested.
func (b *Backend) Calls(path string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[path]
}

// TotalCalls returns the number of requests across all paths.
func (b *Backend) TotalCalls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Reset clears all counters.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
	b.LastRequestHeader = nil
}

// NewServer serves h on a local test server. The server is closed when
// the test ends.
func NewServer(t interface{ Cleanup(func()) }, h http.Handler) *httptest.Server {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// NewTextResponse creates a 200 text/plain response.
func NewTextResponse(body string) BackendResponse {
	return BackendResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() BackendResponse {
	return BackendResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
