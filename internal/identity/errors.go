package identity

import "errors"

// Domain-specific errors for identity operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTokenInvalid is returned for tokens with bad signatures, missing
	// claims, tampered payloads, or expired validity windows.
	ErrTokenInvalid = errors.New("identity: invalid token")

	// ErrUnknownIdentity is returned when a token verifies correctly but
	// its identity claim has no matching user record.
	ErrUnknownIdentity = errors.New("identity: unknown identity")

	// ErrUserExists is returned when creating a user whose identity is taken.
	ErrUserExists = errors.New("identity: user already exists")

	// ErrUserNotFound is returned when looking up a missing user.
	ErrUserNotFound = errors.New("identity: user not found")
)
