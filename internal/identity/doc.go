// Package identity handles signed identity tokens and owner resolution.
//
// Every inbound device message carries an opaque token: a compact JWT
// signed with the deployment's shared symmetric key (HS256), whose claims
// embed the owner identity and a uniqueness nonce. The same token format
// authenticates HTTP callers, so one key and one verification path cover
// both edges of the system.
//
// The Resolver converts a token into a stable owner identity: it verifies
// the signature and claims, then confirms the identity actually exists in
// the user store. A forged, tampered, expired, or unknown token yields a
// typed error, never a panic, because bad tokens are an environmental
// condition, not a programming bug.
package identity
