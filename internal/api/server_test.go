package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/config"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

const testSigningKey = "test-signing-key-at-least-32-characters-long"

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// mockUserStore is an in-memory UserStore for handler tests.
type mockUserStore struct {
	mu    sync.Mutex
	users map[string]*identity.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*identity.User)}
}

func (s *mockUserStore) FindByIdentity(_ context.Context, id string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

func (s *mockUserStore) Create(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Identity]; ok {
		return identity.ErrUserExists
	}
	s.users[user.Identity] = user
	return nil
}

// fakeStream and fakeTransport satisfy the feature transport interfaces
// without a broker.
type fakeStream struct {
	events chan mqtt.Event
	topic  string
	once   sync.Once
}

func (s *fakeStream) Events() <-chan mqtt.Event { return s.events }
func (s *fakeStream) Topic() string             { return s.topic }
func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeTransport struct{}

func (fakeTransport) Publish(string, []byte, byte, bool) error { return nil }
func (fakeTransport) Close() error                             { return nil }

func (fakeTransport) Listen(topic string, _ byte) (feature.EventStream, error) {
	return &fakeStream{events: make(chan mqtt.Event), topic: topic}, nil
}

// stub feature halves mounted under /api/v1/widgets in tests.
type stubAPIHalf struct {
	desc feature.Descriptor
	peer feature.PeerRef[feature.IngestionHalf]
}

func (a *stubAPIHalf) Descriptor() feature.Descriptor      { return a.desc }
func (a *stubAPIHalf) BindPeer(peer feature.IngestionHalf) { a.peer.Bind(peer) }

func (a *stubAPIHalf) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity.CallerFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "authentication required")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"caller": caller})
	})
	return r
}

type stubIngestionHalf struct {
	desc feature.Descriptor
	peer feature.PeerRef[feature.APIHalf]
}

func (i *stubIngestionHalf) Descriptor() feature.Descriptor { return i.desc }
func (i *stubIngestionHalf) BindPeer(peer feature.APIHalf)  { i.peer.Bind(peer) }
func (i *stubIngestionHalf) Close() error                   { return nil }

func (i *stubIngestionHalf) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// testRegistry builds a registry with one running feature ("widgets")
// and one declared optional feature ("extras") left disabled.
func testRegistry(t *testing.T) *feature.Registry {
	t.Helper()

	log := testLogger()
	deps := feature.Deps{
		QueueCapacity:  4,
		RequestTimeout: time.Second,
		Events:         feature.NopNotifier{},
		Logger:         log,
	}
	connect := func(_ context.Context, _ string) (feature.Transport, error) {
		return fakeTransport{}, nil
	}

	r := feature.NewRegistry(deps, connect, feature.FailAbort, log)

	widgets := feature.Descriptor{Name: "widgets", DefaultOn: true}
	r.Register(feature.Registration{
		Desc: widgets,
		New: func(_ context.Context, _ feature.Deps, _ feature.Transport, _ *feature.Exchange) (feature.APIHalf, feature.IngestionHalf, error) {
			return &stubAPIHalf{desc: widgets}, &stubIngestionHalf{desc: widgets}, nil
		},
	})

	extras := feature.Descriptor{Name: "extras", DefaultOn: false}
	r.Register(feature.Registration{
		Desc: extras,
		New: func(_ context.Context, _ feature.Deps, _ feature.Transport, _ *feature.Exchange) (feature.APIHalf, feature.IngestionHalf, error) {
			return &stubAPIHalf{desc: extras}, &stubIngestionHalf{desc: extras}, nil
		},
	})

	if err := r.Build(context.Background(), config.FeaturesConfig{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

func testServer(t *testing.T) (*Server, *mockUserStore) {
	t.Helper()

	log := testLogger()
	users := newMockUserStore()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			SigningKey:     testSigningKey,
			AccessTokenTTL: 15,
		},
		Logger:   log,
		Registry: testRegistry(t),
		Users:    users,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, users
}

// accessToken registers a user and mints a token for it.
func accessToken(t *testing.T, users *mockUserStore, id string) string {
	t.Helper()

	err := users.Create(context.Background(), &identity.User{
		Identity:  id,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := identity.SignToken(id, []byte(testSigningKey), 15*time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRegister(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"identity":"u1","name":"Alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	// Duplicate identity conflicts
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestRegister_MissingIdentity(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"name":"nobody"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestLogin_Success(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()

	if err := users.Create(context.Background(), &identity.User{Identity: "u1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"identity":"u1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 15*60 {
		t.Errorf("expires_in = %d, want %d", resp.ExpiresIn, 15*60)
	}

	claims, err := identity.VerifyToken(resp.AccessToken, []byte(testSigningKey))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Identity != "u1" {
		t.Errorf("token identity = %q, want u1", claims.Identity)
	}
}

func TestLogin_UnknownIdentity(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"identity":"ghost"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()
	token := accessToken(t, users, "u1")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/features", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestListFeatures(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()
	token := accessToken(t, users, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/features", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Features []featureInfo `json:"features"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}

	got := make(map[string]bool, len(resp.Features))
	for _, f := range resp.Features {
		got[f.Name] = f.Enabled
	}
	if !got["widgets"] {
		t.Error("widgets should be listed as enabled")
	}
	if enabled, ok := got["extras"]; !ok || enabled {
		t.Errorf("extras listed = %v, enabled = %v; want listed and disabled", ok, enabled)
	}
}

func TestFeatureRoutes_CallerInjected(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()
	token := accessToken(t, users, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["caller"] != "u1" {
		t.Errorf("caller = %q, want u1", resp["caller"])
	}
}

func TestDeviceToken(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()
	token := accessToken(t, users, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/device-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		DeviceToken string `json:"device_token"`
		Identity    string `json:"identity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Identity != "u1" {
		t.Errorf("identity = %q, want u1", resp.Identity)
	}

	claims, err := identity.VerifyToken(resp.DeviceToken, []byte(testSigningKey))
	if err != nil {
		t.Fatalf("device token does not verify: %v", err)
	}
	if claims.Identity != "u1" {
		t.Errorf("device token identity = %q, want u1", claims.Identity)
	}
	if claims.ExpiresAt != nil {
		t.Error("device token should not expire")
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, users := testServer(t)
	router := srv.buildRouter()
	token := accessToken(t, users, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	// Ticket should be valid once and carry the caller identity
	caller, ok := srv.tickets.validate(ticket)
	if !ok {
		t.Error("ticket should be valid on first use")
	}
	if caller != "u1" {
		t.Errorf("ticket identity = %q, want u1", caller)
	}

	// Ticket should be consumed (single-use)
	if _, ok := srv.tickets.validate(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	ts := newTicketStore()
	ticket := generateTicket()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		identity:  "u1",
		expiresAt: time.Now().Add(-1 * time.Second),
	}
	ts.mu.Unlock()

	if _, ok := ts.validate(ticket); ok {
		t.Error("expired ticket should not be valid")
	}

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		identity:  "u1",
		expiresAt: time.Now().Add(-1 * time.Second),
	}
	ts.mu.Unlock()

	ts.cleanExpired()

	ts.mu.Lock()
	remaining := len(ts.tickets)
	ts.mu.Unlock()
	if remaining != 0 {
		t.Errorf("tickets after cleanup = %d, want 0", remaining)
	}
}

func TestHub_NotifyChannelNaming(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"firealert.alert": {}},
	}
	hub.Register(client)

	hub.Notify("firealert", "alert", map[string]any{"detector_id": "smoke-1", "level": 2})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEvent)
		}
		if wsMsg.EventType != "firealert.alert" {
			t.Errorf("event_type = %q, want firealert.alert", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"devicestatus.reading": {}},
	}
	hub.Register(client)

	hub.Notify("firealert", "alert", map[string]any{"detector_id": "smoke-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// wsTestServer starts an httptest server and connects an authenticated
// WebSocket client through the full ticket flow.
func wsTestServer(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()

	srv, users := testServer(t)
	token := accessToken(t, users, "u1")

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	if err != nil {
		t.Fatalf("build ticket request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ws-ticket request failed: %v", err)
	}
	defer resp.Body.Close()

	var ticketResult struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticketResult); err != nil {
		t.Fatalf("decode ticket response: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResult.Ticket
	ws, dialResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, dialResp)
	}
	t.Cleanup(func() { ws.Close() })

	return srv, ws
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	srv, ws := wsTestServer(t)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"firealert.alert"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse {
		t.Errorf("subscribe response type = %s, want %s", resp.Type, WSTypeResponse)
	}
	if resp.ID != "sub-1" {
		t.Errorf("response ID = %s, want sub-1", resp.ID)
	}

	srv.hub.Notify("firealert", "alert", map[string]string{"detector_id": "smoke-1"})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent {
		t.Errorf("broadcast type = %s, want %s", resp.Type, WSTypeEvent)
	}
	if resp.EventType != "firealert.alert" {
		t.Errorf("broadcast event_type = %s, want firealert.alert", resp.EventType)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, ws := wsTestServer(t)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong {
		t.Errorf("response type = %s, want %s", resp.Type, WSTypePong)
	}
	if resp.ID != "ping-1" {
		t.Errorf("response ID = %s, want ping-1", resp.ID)
	}
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	_, ws := wsTestServer(t)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid message: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("response type = %s, want %s", resp.Type, WSTypeError)
	}
}

func TestWebSocket_NoTicket(t *testing.T) {
	srv, _ := testServer(t)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected error connecting without ticket")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebSocket_InvalidTicket(t *testing.T) {
	srv, _ := testServer(t)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=invalid-ticket"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected error connecting with invalid ticket")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
