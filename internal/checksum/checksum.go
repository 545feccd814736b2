// Package checksum computes content digests used as upload ETags.
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

// Quote formats a digest as a strong HTTP entity tag.
func Quote(sum string) string {
	return `"` + sum + `"`
}
