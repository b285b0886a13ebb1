package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed claim object embedded in every identity token.
//
// Identity is the stable owner identity (an email-shaped string). Nonce
// guarantees uniqueness between otherwise-identical tokens so a device
// re-provisioned with the same identity gets a distinct credential.
type Claims struct {
	jwt.RegisteredClaims
	Identity string `json:"identity"`
	Nonce    string `json:"nonce"`
}

// SignToken creates a compact signed identity token.
//
// Used both when provisioning devices (ttl 0: no expiry, the credential
// lives as long as the device) and when issuing short-lived user access
// tokens (ttl > 0).
//
// Parameters:
//   - identity: The owner identity to embed
//   - key: The shared symmetric signing key
//   - ttl: Token lifetime; 0 means no expiry claim
//
// Returns:
//   - string: The compact signed token
//   - error: If signing fails
func SignToken(identity string, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Identity: identity,
		Nonce:    uuid.NewString(),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing identity token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a compact identity token and returns its claims.
//
// It checks the HMAC-SHA-256 signature, the expiry window when present,
// and the required identity and nonce claims. Any failure (including a
// payload tampered after signing) yields ErrTokenInvalid.
func VerifyToken(tokenString string, key []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Identity == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrTokenInvalid)
	}
	if claims.Nonce == "" {
		return nil, fmt.Errorf("%w: missing nonce", ErrTokenInvalid)
	}

	return claims, nil
}
