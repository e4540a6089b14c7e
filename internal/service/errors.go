package service

import "errors"

// Error kinds returned by the auth services. Callers match with errors.Is
// and translate to transport status codes at the HTTP boundary only.
//
// All credential-verification failures collapse to ErrUnauthorized with a
// generic message, regardless of the internal cause (unknown user, wrong
// password, revoked or expired key): distinguishable failures would let a
// caller enumerate valid usernames and keys. The precise cause is logged
// internally and never returned.
var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate username or email.
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates a missing user or key.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a bad, expired, or revoked credential, a bad
	// signature, or an inactive user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an ownership mismatch on a key operation.
	ErrForbidden = errors.New("forbidden")
)
