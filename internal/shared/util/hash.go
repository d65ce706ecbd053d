package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashDocument returns a stable hex fingerprint of a JSON-serializable value.
// Struct fields and map keys marshal in a deterministic order, so two
// semantically identical documents produce the same fingerprint.
func HashDocument(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
