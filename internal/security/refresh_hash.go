package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns the hex-encoded SHA-256 hash of a refresh token.
// The token store keys rows by this hash so the raw token never touches the
// database; lookups recompute the hash from the presented token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual compares the presented token's hash with a stored
// hash in constant time.
func RefreshTokenHashEqual(presentedToken, storedHash string) bool {
	hash := HashRefreshToken(presentedToken)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(storedHash)) == 1
}
