package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecorder(t *testing.T) {
	rec := newRecorder()
	if rec.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode() before writes = %d, want 200", rec.StatusCode())
	}

	rec.Header().Set("Content-Type", "text/plain")
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusTeapot)

	buf := []byte("hello ")
	rec.Write(buf)
	buf[0] = 'j'
	rec.Write([]byte("world"))
	rec.Write(nil)

	if rec.StatusCode() != http.StatusCreated {
		t.Errorf("StatusCode() = %d, want first status 201", rec.StatusCode())
	}
	if len(rec.chunks) != 2 {
		t.Errorf("len(chunks) = %d, want 2", len(rec.chunks))
	}
	if got := string(rec.Body()); got != "hello world" {
		t.Errorf("Body() = %q", got)
	}

	w := httptest.NewRecorder()
	rec.flush(w)
	if w.Code != http.StatusCreated || w.Body.String() != "hello world" {
		t.Errorf("flush wrote %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("flush lost headers: %v", w.Header())
	}
}

func TestRecorder_ImplicitStatus(t *testing.T) {
	rec := newRecorder()
	rec.Write([]byte("x"))
	if rec.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode() = %d, want 200", rec.StatusCode())
	}
}
