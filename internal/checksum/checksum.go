// Package checksum hashes login codes for storage. Codes are never kept in clear.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Code returns the hex-encoded SHA-256 digest of a login code.
func Code(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}
