package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum returns the lowercase hex SHA-256 of data. The digest is the sole
// cache identity for a file; names and metadata never participate.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a digest produced by Sum, so
// caller-supplied hashes can be checked before a cache lookup.
func Valid(s string) bool {
	return hexDigest.MatchString(s)
}
