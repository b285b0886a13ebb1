package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockUserStore is a test implementation of UserStore.
type MockUserStore struct {
	mu      sync.Mutex
	users   map[string]*User
	findErr error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*User)}
}

func (m *MockUserStore) FindByIdentity(_ context.Context, identity string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.users[identity]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, ErrUserNotFound
}

func (m *MockUserStore) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Identity]; ok {
		return ErrUserExists
	}
	m.users[user.Identity] = user
	return nil
}

func TestResolve_KnownIdentity(t *testing.T) {
	store := NewMockUserStore()
	if err := store.Create(context.Background(), &User{Identity: "a@example.com"}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	resolver := NewResolver(store, testKey)

	token, err := SignToken("a@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	owner, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if owner != "a@example.com" {
		t.Errorf("owner = %q, want %q", owner, "a@example.com")
	}
}

func TestResolve_UnknownIdentity(t *testing.T) {
	resolver := NewResolver(NewMockUserStore(), testKey)

	token, err := SignToken("ghost@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	_, err = resolver.Resolve(context.Background(), token)
	if !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("Resolve() error = %v, want ErrUnknownIdentity", err)
	}
}

func TestResolve_BadSignature(t *testing.T) {
	store := NewMockUserStore()
	if err := store.Create(context.Background(), &User{Identity: "a@example.com"}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	resolver := NewResolver(store, testKey)

	token, err := SignToken("a@example.com", otherKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	_, err = resolver.Resolve(context.Background(), token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Resolve() error = %v, want ErrTokenInvalid", err)
	}
}

func TestResolve_StoreFailurePropagates(t *testing.T) {
	store := NewMockUserStore()
	store.findErr = errors.New("connection reset")
	resolver := NewResolver(store, testKey)

	token, err := SignToken("a@example.com", testKey, 0)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	_, err = resolver.Resolve(context.Background(), token)
	if err == nil {
		t.Fatal("Resolve() expected error when store fails")
	}
	if errors.Is(err, ErrUnknownIdentity) {
		t.Error("store failure must not be misreported as unknown identity")
	}
}
