// Package sha256 digests artifacts so an operator can check a mirrored copy
// against the primary.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

var _ crawler.Hasher = Hasher{}

// New returns a SHA-256 hasher.
func New() Hasher {
	return Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
