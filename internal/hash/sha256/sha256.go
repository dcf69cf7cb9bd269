// Package sha256 provides the SHA-256 digests used for chunk IDs and archive keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Hex(data), nil
}

// Hex returns the lowercase hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Prefix returns the first n hex characters of the digest of s.
func Prefix(s string, n int) string {
	digest := Hex([]byte(s))
	if n <= 0 || n >= len(digest) {
		return digest
	}
	return digest[:n]
}
