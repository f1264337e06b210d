// Package sha1 names post files by the SHA-1 digest of their title.
package sha1

import (
	"crypto/sha1" //nolint:gosec // used for stable file names, not security
	"encoding/hex"
)

// Hasher implements embassy.Hasher using SHA-1.
type Hasher struct{}

// New returns a SHA-1 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a lowercase hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha1.Sum(data) //nolint:gosec // see import
	return hex.EncodeToString(sum[:]), nil
}
