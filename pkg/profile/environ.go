package profile

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type environKey struct{}

// WithEnviron returns a context carrying server environment values, used
// by RequestVary for environment facets. Values in env take precedence
// over the variables derived from the request itself.
func WithEnviron(ctx context.Context, env map[string]string) context.Context {
	if parent, ok := ctx.Value(environKey{}).(map[string]string); ok {
		merged := make(map[string]string, len(parent)+len(env))
		for k, v := range parent {
			merged[k] = v
		}
		for k, v := range env {
			merged[k] = v
		}
		env = merged
	}
	return context.WithValue(ctx, environKey{}, env)
}

// Environ looks up a server environment value for r. Values injected with
// WithEnviron win; otherwise CGI style variables are derived from r.
func Environ(r *http.Request, name string) (string, bool) {
	if env, ok := r.Context().Value(environKey{}).(map[string]string); ok {
		if v, ok := env[name]; ok {
			return v, true
		}
	}
	return cgiVariable(r, name)
}

func cgiVariable(r *http.Request, name string) (string, bool) {
	switch name {
	case "REQUEST_METHOD":
		return r.Method, true
	case "PATH_INFO":
		return r.URL.Path, true
	case "QUERY_STRING":
		return r.URL.RawQuery, true
	case "SERVER_PROTOCOL":
		return r.Proto, true
	case "REMOTE_ADDR":
		if r.RemoteAddr == "" {
			return "", false
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr, true
		}
		return host, true
	case "SERVER_NAME":
		if r.Host == "" {
			return "", false
		}
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			return r.Host, true
		}
		return host, true
	case "CONTENT_TYPE":
		v := r.Header.Get("Content-Type")
		return v, v != ""
	case "CONTENT_LENGTH":
		if r.ContentLength <= 0 {
			return "", false
		}
		return strconv.FormatInt(r.ContentLength, 10), true
	case "HTTPS":
		if r.TLS == nil {
			return "", false
		}
		return "on", true
	}

	if header, ok := strings.CutPrefix(name, "HTTP_"); ok {
		values, present := r.Header[http.CanonicalHeaderKey(strings.ReplaceAll(header, "_", "-"))]
		if !present {
			return "", false
		}
		return strings.Join(values, ","), true
	}
	return "", false
}
