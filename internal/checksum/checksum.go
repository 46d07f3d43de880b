// Package checksum digests entity records, for the API's optimistic
// concurrency token and for the file watcher's echo suppression.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumJSON digests the JSON serialization of v. It returns the empty
// string when v cannot be marshalled.
func SumJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Sum(data)
}
