package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns a SHA-256 hash of the refresh token string, hex-encoded.
// Sessions store this hash instead of the raw token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash. An empty stored hash never matches.
func RefreshTokenHashEqual(providedToken, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return hashEqual(HashRefreshToken(providedToken), storedHash)
}

// PasswordFingerprint returns a short digest of a password hash for binding reset tokens.
func PasswordFingerprint(passwordHash string) string {
	h := sha256.Sum256([]byte("reset:" + passwordHash))
	return hex.EncodeToString(h[:12])
}

func hashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
