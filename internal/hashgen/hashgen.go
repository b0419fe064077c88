// Package hashgen produces the opaque tokens used for project identity:
// wide internal IDs and shorter public hashes for external-facing links.
package hashgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	// idBytes yields 16 hex characters, wide enough that collisions are
	// treated as practically impossible.
	idBytes = 8

	// publicHashBytes yields 12 hex characters for public short links.
	publicHashBytes = 6
)

var tokenPattern = regexp.MustCompile(`^[a-f0-9]{12,16}$`)

// NewID generates a new internal project identifier.
func NewID() (string, error) {
	return token(idBytes)
}

// NewPublicHash generates a new public short-link hash.
func NewPublicHash() (string, error) {
	return token(publicHashBytes)
}

func token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsValidToken reports whether s has the shape of an ID or public hash.
func IsValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}
