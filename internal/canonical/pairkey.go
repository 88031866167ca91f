package canonical

import (
	"crypto/sha1"
	"encoding/hex"
)

// PairKey returns a stable hash of the unordered {a, b} pair: the parties are
// sorted lexicographically before hashing, so PairKey(a, b) == PairKey(b, a).
// Empty if either party is missing.
func PairKey(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	if b < a {
		a, b = b, a
	}
	sum := sha1.Sum([]byte(a + "|" + b))
	return hex.EncodeToString(sum[:])
}
