// Package anonymizer issues unlinkable public report handles and derives
// non-reversible keys from client network addresses.
package anonymizer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Prefix starts every anonymous identifier.
const Prefix = "anon_"

// Generator issues anonymous identifiers from a random source.
type Generator struct {
	rand io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader returns a Generator drawing bytes from r.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns "anon_" followed by 8 hex characters. The value carries no
// timestamp, sequence or submitter data, so two reports cannot be correlated
// through it. Uniqueness is enforced by the store, which regenerates on
// collision.
func (g *Generator) Generate() (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(g.rand, b[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return Prefix + hex.EncodeToString(b[:]), nil
}

// HashAddress derives a rate-limit key from a client address. The salt keeps
// the key from being reversed by brute-forcing the IPv4 space.
func HashAddress(addr, salt string) string {
	sum := sha256.Sum256([]byte(addr + salt))
	return hex.EncodeToString(sum[:])
}
