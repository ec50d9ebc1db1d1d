package middleware

import (
	"bytes"
	"net/http"
)

// recorder buffers a downstream response so it can be inspected, decorated
// with cache headers and stored before anything reaches the client.
type recorder struct {
	header      http.Header
	status      int
	chunks      [][]byte
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

// Header implements http.ResponseWriter.
func (r *recorder) Header() http.Header {
	return r.header
}

// WriteHeader implements http.ResponseWriter. Only the first call counts.
func (r *recorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = statusCode
}

// Write implements http.ResponseWriter. Each call is kept as one chunk.
func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if len(b) > 0 {
		r.chunks = append(r.chunks, append([]byte(nil), b...))
	}
	return len(b), nil
}

// StatusCode returns the recorded status, 200 if the handler never wrote one.
func (r *recorder) StatusCode() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.status
}

// Body returns the concatenated chunks.
func (r *recorder) Body() []byte {
	return bytes.Join(r.chunks, nil)
}

// flush writes the recorded response to w unchanged.
func (r *recorder) flush(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range r.header {
		h[name] = values
	}
	w.WriteHeader(r.StatusCode())
	for _, chunk := range r.chunks {
		if _, err := w.Write(chunk); err != nil {
			return
		}
	}
}
