package middleware

import (
	"bytes"
	"io"
	"mime"
	"net/http"
)

// maxBufferedForm matches the url-encoded body limit of ParseForm.
const maxBufferedForm = 10 << 20

// keyRequest returns the request that cache keys are derived from. For a
// form body it buffers the body, hands r a fresh reader over the copy and
// returns a clone reading its own copy, so form facets are seen whether
// or not the handler consumes the body. Other requests are returned as is.
func keyRequest(r *http.Request) *http.Request {
	if r.Body == nil || r.Body == http.NoBody || r.PostForm != nil || !hasFormBody(r) {
		return r
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBufferedForm+1))
	if err != nil || len(data) > maxBufferedForm {
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}
		return r
	}

	r.Body = io.NopCloser(bytes.NewReader(data))
	keys := r.Clone(r.Context())
	keys.Body = io.NopCloser(bytes.NewReader(data))
	return keys
}

func hasFormBody(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}
