package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hearthlink/hearth-core/internal/identity"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// defaultAccessTokenTTL is the access token lifetime in minutes when
	// the configuration does not set one.
	defaultAccessTokenTTL = 15
)

// registerRequest is the request body for POST /auth/register.
type registerRequest struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Identity string `json:"identity"`
}

// tokenResponse is the response body for token-issuing endpoints.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleRegister creates a new user account.
//
// Credential material is managed by the identity provider fronting this
// API; the core only records the identity mapping used to key device
// ownership.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		writeBadRequest(w, "identity is required")
		return
	}

	user := &identity.User{
		Identity:  req.Identity,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			writeConflict(w, "identity already registered")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin issues a short-lived access token for a registered user.
//
// The gateway in front of this API has already verified the caller's
// credentials; this endpoint confirms the identity is registered and
// mints the token the rest of the API accepts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.FindByIdentity(r.Context(), strings.TrimSpace(req.Identity))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeUnauthorized(w, "unknown identity")
			return
		}
		s.logger.Error("failed to look up user", "error", err)
		writeInternalError(w, "failed to look up user")
		return
	}

	ttl := s.secCfg.AccessTokenTTL
	if ttl == 0 {
		ttl = defaultAccessTokenTTL
	}

	signed, err := identity.SignToken(user.Identity, []byte(s.secCfg.SigningKey), time.Duration(ttl)*time.Minute)
	if err != nil {
		s.logger.Error("failed to sign access token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60, // seconds
	})
}

// handleDeviceToken issues a long-lived token for embedding in a device.
//
// Devices present this token in their uplink payloads; the ingestion
// side resolves it back to the owning identity. The token carries no
// expiry, so revocation means rotating the signing key.
func (s *Server) handleDeviceToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	signed, err := identity.SignToken(caller, []byte(s.secCfg.SigningKey), 0)
	if err != nil {
		s.logger.Error("failed to sign device token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_token": signed,
		"identity":     caller,
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the access token in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	ticket := s.tickets.issue(caller)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use, bound to an identity, and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	identity  string
	expiresAt time.Time
}

// newTicketStore creates an empty ticket store.
func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
	}
}

// issue creates a ticket bound to the given identity.
func (ts *ticketStore) issue(identity string) string {
	ticket := generateTicket()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		identity:  identity,
		expiresAt: time.Now().Add(ticketTTL),
	}
	ts.mu.Unlock()

	return ticket
}

// validate checks if a ticket is valid and consumes it (single-use).
// It returns the identity the ticket was issued to.
func (ts *ticketStore) validate(ticket string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return "", false
	}

	// Remove ticket (single-use)
	delete(ts.tickets, ticket)

	// Check expiry
	if time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.identity, true
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// cleanLoop runs cleanExpired periodically until the context is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.cleanExpired()
		}
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
