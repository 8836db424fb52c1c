// Package canonhash produces short deterministic hashes over Go values.
//
// Values are serialized to JSON, canonicalized per RFC 8785 (JCS) so that
// map key order and number formatting cannot influence the digest, then
// hashed with SHA-256. Hashes are truncated to a fixed prefix; they identify
// stage inputs and outputs in audit records and cache keys, they are not
// used for integrity protection.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// PrefixLen is the number of hex characters kept from the SHA-256 digest.
const PrefixLen = 16

// Hash canonicalizes v and returns the truncated hex digest.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonhash: marshal: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonhash: canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:PrefixLen], nil
}

// HashStrings hashes the parts in order with an unambiguous separator.
// It never fails and is used where the input is already a flat, sorted
// list of identifiers.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))[:PrefixLen]
}
