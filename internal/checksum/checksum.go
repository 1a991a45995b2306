// Package checksum derives content digests and HTTP entity tags from stored
// records.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns the strong entity tag for data, quoted.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}

// MatchNoneHeader reports whether an If-None-Match header value matches etag.
// It accepts "*", comma-separated lists, and weak tags.
func MatchNoneHeader(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}
