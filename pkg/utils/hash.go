package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// HashKey derives a stable cache key from an ordered list of parts.
// Parts are length-prefixed before hashing so that ("ab","c") and
// ("a","bc") produce different keys, and swapping multi-input arguments
// changes the key.
func HashKey(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, part := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(part)))
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
