// Package checksum derives content digests for stored images and cached
// dictionary responses.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ObjectName returns a content-addressed object name with ext appended.
// Identical uploads share one name.
func ObjectName(data []byte, ext string) string {
	return Sum(data)[:32] + ext
}

// ETag returns a strong HTTP entity tag for data.
func ETag(data []byte) string {
	return `"` + Sum(data)[:20] + `"`
}
