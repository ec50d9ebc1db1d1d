package profile

import (
	"crypto/sha1"
	"encoding/base64"
	"hash"

	"github.com/cespare/xxhash/v2"
)

// ETagFunc computes an entity tag over the buffered body chunks of a
// response. The result is used verbatim as the ETag header value.
type ETagFunc func(chunks [][]byte) string

// MakeETag returns an ETagFunc that hashes every chunk with a hash from
// newHash and quotes the unpadded base64 digest.
func MakeETag(newHash func() hash.Hash) ETagFunc {
	return func(chunks [][]byte) string {
		h := newHash()
		for _, chunk := range chunks {
			h.Write(chunk)
		}
		return `"` + base64.RawStdEncoding.EncodeToString(h.Sum(nil)) + `"`
	}
}

// XXHashETag hashes bodies with xxhash64.
var XXHashETag = MakeETag(func() hash.Hash { return xxhash.New() })

// SHA1ETag hashes bodies with SHA-1.
var SHA1ETag = MakeETag(sha1.New)
