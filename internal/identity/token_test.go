package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var (
	testKey  = []byte("0123456789abcdef0123456789abcdef")
	otherKey = []byte("fedcba9876543210fedcba9876543210")
)

func TestSignVerify_RoundTrip(t *testing.T) {
	token, err := SignToken("a@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	claims, err := VerifyToken(token, testKey)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}

	if claims.Identity != "a@example.com" {
		t.Errorf("Identity = %q, want %q", claims.Identity, "a@example.com")
	}
	if claims.Nonce == "" {
		t.Error("Nonce should be populated")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	token, err := SignToken("a@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	_, err = VerifyToken(token, otherKey)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	token, err := SignToken("a@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	// Rewrite the claim segment (same signature, altered claim bytes).
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	var claimset map[string]any
	if err := json.Unmarshal(payload, &claimset); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	claimset["identity"] = "attacker@example.com"
	forged, err := json.Marshal(claimset)
	if err != nil {
		t.Fatalf("marshalling forged payload: %v", err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = VerifyToken(strings.Join(parts, "."), testKey)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	token, err := SignToken("a@example.com", testKey, -time.Minute)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	_, err = VerifyToken(token, testKey)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenInvalid for expired token", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	_, err := VerifyToken("not-a-token", testKey)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_NoExpiryStillValid(t *testing.T) {
	// Device credentials are minted without expiry.
	token, err := SignToken("device-owner@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	claims, err := VerifyToken(token, testKey)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Error("ExpiresAt should be nil for ttl 0")
	}
}
