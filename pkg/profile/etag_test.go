package profile

import (
	"strings"
	"testing"
)

func TestETagFuncs(t *testing.T) {
	funcs := map[string]ETagFunc{
		"xxhash": XXHashETag,
		"sha1":   SHA1ETag,
	}

	for name, fn := range funcs {
		t.Run(name, func(t *testing.T) {
			whole := fn([][]byte{[]byte("hello world")})
			split := fn([][]byte{[]byte("hello "), []byte("world")})
			other := fn([][]byte{[]byte("hello there")})

			if whole != split {
				t.Errorf("chunking changed the tag: %q vs %q", whole, split)
			}
			if whole == other {
				t.Errorf("different bodies produced the same tag %q", whole)
			}
			if !strings.HasPrefix(whole, `"`) || !strings.HasSuffix(whole, `"`) {
				t.Errorf("tag %q is not quoted", whole)
			}
		})
	}
}

func TestSHA1ETag_Known(t *testing.T) {
	// sha1("") = da39a3ee5e6b4b0d3255bfef95601890afd80709
	if got := SHA1ETag(nil); got != `"2jmj7l5rSw0yVb/vlWAYkK/YBwk"` {
		t.Errorf("SHA1ETag(nil) = %q", got)
	}
}
