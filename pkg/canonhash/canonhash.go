// Package canonhash computes stable content hashes. Two structurally equal
// values hash identically regardless of how they were produced, which makes
// the sums usable as ETags for exported documents.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SumObject hashes the canonical JSON encoding of v and returns the tagged
// hex digest together with the encoded bytes.
func SumObject(v any) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return SumBytes(b), b, nil
}

// SumBytes returns the tagged hex digest of raw bytes.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
