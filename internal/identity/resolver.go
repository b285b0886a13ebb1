package identity

import (
	"context"
	"errors"
	"fmt"
)

// Resolver converts opaque per-message credential tokens into stable
// owner identities.
//
// Resolution is two-step: signature verification proves the token was
// minted with the shared key, and the user-store lookup proves the
// embedded identity still corresponds to a real account. A deleted user's
// devices keep publishing valid signatures, so the lookup is not optional.
//
// Thread Safety: safe for concurrent use; the user store is expected to
// handle its own concurrency (the Mongo implementation does).
type Resolver struct {
	users UserStore
	key   []byte
}

// NewResolver creates a Resolver over the given user store and signing key.
func NewResolver(users UserStore, key []byte) *Resolver {
	return &Resolver{users: users, key: key}
}

// Resolve verifies a token and returns the owner identity it proves.
//
// Returns ErrTokenInvalid for signature/claim failures and
// ErrUnknownIdentity when the claim names no existing user.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := VerifyToken(token, r.key)
	if err != nil {
		return "", err
	}

	if _, err := r.users.FindByIdentity(ctx, claims.Identity); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownIdentity, claims.Identity)
		}
		return "", fmt.Errorf("looking up identity %q: %w", claims.Identity, err)
	}

	return claims.Identity, nil
}
