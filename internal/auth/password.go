// Package auth provides the stateless credential primitives: the scrypt
// password hasher, the API key codec, and the JWT token issuer.
package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const saltLen = 16

// ScryptParams holds the scrypt cost parameters. They are stored inside each
// hash blob, so parameters can be raised over time without migrating
// previously stored hashes.
type ScryptParams struct {
	N      int `json:"n"` // CPU/memory cost, must be a power of two
	R      int `json:"r"` // block size
	P      int `json:"p"` // parallelism
	KeyLen int `json:"dklen"`
}

// DefaultScryptParams returns the default cost parameters.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 14, R: 8, P: 1, KeyLen: 32}
}

// PasswordHasher derives and verifies self-describing scrypt password hashes.
// The blob format is base64(jsonParams ":" salt derivedKey): verification
// recovers the parameters and salt from the blob itself, so no external
// configuration is needed to check old hashes.
type PasswordHasher struct {
	params ScryptParams
}

// NewPasswordHasher creates a hasher with the given cost parameters.
func NewPasswordHasher(params ScryptParams) (*PasswordHasher, error) {
	if params.N <= 1 || params.N&(params.N-1) != 0 {
		return nil, fmt.Errorf("scrypt N must be a power of two greater than 1, got %d", params.N)
	}
	if params.R <= 0 || params.P <= 0 || params.KeyLen <= 0 {
		return nil, fmt.Errorf("scrypt r, p, and key length must be positive")
	}
	return &PasswordHasher{params: params}, nil
}

// Hash derives a password hash with a fresh random 16-byte salt. Two calls
// with the same password produce different blobs.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	dk, err := scrypt.Key([]byte(password), salt, h.params.N, h.params.R, h.params.P, h.params.KeyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}

	preamble, err := json.Marshal(h.params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	blob := make([]byte, 0, len(preamble)+1+saltLen+len(dk))
	blob = append(blob, preamble...)
	blob = append(blob, ':')
	blob = append(blob, salt...)
	blob = append(blob, dk...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Verify reports whether password matches the stored blob. Any parse failure
// (malformed base64, truncated data, corrupted preamble) fails closed: this
// sits on the authentication boundary, so corruption must read as a
// verification failure rather than an error or a crash.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	// Locate the end of the JSON preamble by scanning for the matching close
	// brace. This boundary scan is part of the stored-hash contract and must
	// not change, or previously stored hashes become unverifiable.
	jsonEnd := -1
	depth := 0
	for i, c := range decoded {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				jsonEnd = i
			}
		}
		if jsonEnd >= 0 {
			break
		}
	}
	if jsonEnd < 0 {
		return false
	}

	sep := bytes.IndexByte(decoded[jsonEnd:], ':')
	if sep < 0 {
		return false
	}
	sep += jsonEnd

	var params ScryptParams
	if err := json.Unmarshal(decoded[:jsonEnd+1], &params); err != nil {
		return false
	}

	if len(decoded) < sep+1+saltLen+1 {
		return false
	}
	salt := decoded[sep+1 : sep+1+saltLen]
	stored := decoded[sep+1+saltLen:]

	dk, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.KeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(dk, stored) == 1
}
