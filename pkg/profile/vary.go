package profile

import (
	"mime"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// Key fragment markers. A configured name that is present contributes
// markPresent followed by its values; an absent name contributes
// markAbsent, so "absent" and "present but empty" never collide.
const (
	markHeaders = "H"
	markQuery   = "Q"
	markForm    = "F"
	markCookies = "C"
	markEnviron = "E"
	markPresent = "N"
	markAbsent  = "X"
	valueSep    = ";"
)

const maxFormMemory = 32 << 20

// valueEscaper backslash-escapes markers and separators inside values, so
// no value can end its own fragment early or imitate a following name.
var valueEscaper = strings.NewReplacer(
	`\`, `\\`,
	valueSep, `\`+valueSep,
	markPresent, `\`+markPresent,
	markAbsent, `\`+markAbsent,
	markHeaders, `\`+markHeaders,
	markQuery, `\`+markQuery,
	markForm, `\`+markForm,
	markCookies, `\`+markCookies,
	markEnviron, `\`+markEnviron,
)

// VaryOptions selects the request facets a RequestVary reads.
type VaryOptions struct {
	Headers []string
	Query   []string
	Form    []string
	Cookies []string
	Environ []string
}

// varyPart derives one key fragment from a request.
type varyPart func(r *http.Request) string

// RequestVary derives deterministic cache keys from a request. The set
// and order of names is frozen at construction.
type RequestVary struct {
	parts []varyPart
}

// NewRequestVary builds a key strategy. The first part is always the
// first letter of the method followed by the path.
func NewRequestVary(opts VaryOptions) *RequestVary {
	parts := []varyPart{requestKey}
	if names := sortedNames(opts.Headers, textproto.CanonicalMIMEHeaderKey); len(names) > 0 {
		parts = append(parts, headerPart(names))
	}
	if names := sortedNames(opts.Query, nil); len(names) > 0 {
		parts = append(parts, queryPart(names))
	}
	if names := sortedNames(opts.Form, nil); len(names) > 0 {
		parts = append(parts, formPart(names))
	}
	if names := sortedNames(opts.Cookies, nil); len(names) > 0 {
		parts = append(parts, cookiePart(names))
	}
	if names := sortedNames(opts.Environ, nil); len(names) > 0 {
		parts = append(parts, environPart(names))
	}
	return &RequestVary{parts: parts}
}

// Key returns the cache key for r.
func (v *RequestVary) Key(r *http.Request) string {
	if len(v.parts) == 1 {
		return v.parts[0](r)
	}
	var b strings.Builder
	for _, part := range v.parts {
		b.WriteString(part(r))
	}
	return b.String()
}

func sortedNames(names []string, normalize func(string) string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if normalize != nil {
			name = normalize(name)
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func requestKey(r *http.Request) string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method[:1] + r.URL.Path
}

func multiPart(marker string, names []string, lookup func(r *http.Request) map[string][]string) varyPart {
	return func(r *http.Request) string {
		values := lookup(r)
		var b strings.Builder
		b.WriteString(marker)
		for _, name := range names {
			if vs, ok := values[name]; ok {
				b.WriteString(markPresent)
				for i, v := range vs {
					if i > 0 {
						b.WriteString(valueSep)
					}
					valueEscaper.WriteString(&b, v)
				}
			} else {
				b.WriteString(markAbsent)
			}
		}
		return b.String()
	}
}

func singlePart(marker string, names []string, lookup func(r *http.Request, name string) (string, bool)) varyPart {
	return func(r *http.Request) string {
		var b strings.Builder
		b.WriteString(marker)
		for _, name := range names {
			if v, ok := lookup(r, name); ok {
				b.WriteString(markPresent)
				valueEscaper.WriteString(&b, v)
			} else {
				b.WriteString(markAbsent)
			}
		}
		return b.String()
	}
}

func headerPart(names []string) varyPart {
	return multiPart(markHeaders, names, func(r *http.Request) map[string][]string {
		return r.Header
	})
}

func queryPart(names []string) varyPart {
	return multiPart(markQuery, names, func(r *http.Request) map[string][]string {
		return r.URL.Query()
	})
}

func formPart(names []string) varyPart {
	return multiPart(markForm, names, func(r *http.Request) map[string][]string {
		return postForm(r)
	})
}

func cookiePart(names []string) varyPart {
	return singlePart(markCookies, names, func(r *http.Request, name string) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil {
			return "", false
		}
		return c.Value, true
	})
}

func environPart(names []string) varyPart {
	return singlePart(markEnviron, names, Environ)
}

// postForm returns the parsed body form of r, parsing it on first use.
// Parsing failures read as an empty form.
func postForm(r *http.Request) map[string][]string {
	if r.PostForm == nil {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			_ = r.ParseMultipartForm(maxFormMemory)
		} else {
			_ = r.ParseForm()
		}
	}
	return r.PostForm
}
