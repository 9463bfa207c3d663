// Package canonicalize serializes authorization artifacts (audit entries,
// decisions, certificates) to RFC 8785 canonical JSON and hashes them.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix tags every digest written into an exported artifact.
const HashPrefix = "sha256:"

// JCS returns the canonical JSON form of v.
//
// v goes through encoding/json first, so struct tags and omitempty apply, and the
// result is then canonicalized: keys sorted by UTF-16 code units, no HTML escaping,
// numbers in shortest ES6 form. Integers that came back from storage as float64
// therefore hash the same as the originals.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return out, nil
}

// PrefixedHash hashes the canonical form of v and tags it with HashPrefix.
func PrefixedHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashPrefix + HashBytes(b), nil
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
