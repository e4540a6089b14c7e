package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// apiKeyEntropy is the number of random bytes behind each key.
const apiKeyEntropy = 32

// GenerateAPIKey creates a new raw API key of the form
// "{prefix}_{base64url-without-padding(32 random bytes)}" together with the
// SHA-256 hash under which it is stored. A fast hash is fine here: unlike a
// password, the secret is high-entropy random, so offline cracking is not a
// concern.
func GenerateAPIKey(prefix string) (rawKey, keyHash string, err error) {
	buf := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate random key: %w", err)
	}
	rawKey = prefix + "_" + base64.RawURLEncoding.EncodeToString(buf)
	return rawKey, HashAPIKey(rawKey), nil
}

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
// It is deterministic: the same input always yields the same hash, which is
// what makes hash-based lookup possible.
func HashAPIKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

// VerifyKeyHash reports whether rawKey hashes to storedHash, comparing in
// constant time.
func VerifyKeyHash(rawKey, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashAPIKey(rawKey)), []byte(storedHash)) == 1
}

// KeyExpiredAt reports whether a key with the given expiry is expired at
// instant now. A nil expiry means the key never expires. Both sides are
// normalized to UTC so that timestamps stored without an explicit zone are
// treated as UTC.
func KeyExpiredAt(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.UTC().After(expiresAt.UTC())
}

// KeyExpired is KeyExpiredAt against the current wall clock.
func KeyExpired(expiresAt *time.Time) bool {
	return KeyExpiredAt(expiresAt, time.Now())
}
