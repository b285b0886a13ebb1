package feature

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

// Descriptor identifies a feature across the registry.
// Immutable after registration.
type Descriptor struct {
	// Name is the unique feature name; it doubles as the feature's topic
	// namespace segment and its route mount point.
	Name string

	// DefaultOn reports whether the feature starts without explicit
	// opt-in. Optional features (DefaultOn false) appear in the
	// available-features listing and start only when enabled in config.
	DefaultOn bool
}

// APIHalf is the request-facing half of a feature.
//
// Implementations own the send side of the request queue and a PeerRef
// to their ingestion half. Created once at startup, alive for the
// process lifetime, always in a pair with an IngestionHalf.
type APIHalf interface {
	// Descriptor returns the feature's identity.
	Descriptor() Descriptor

	// Routes returns the route fragment the HTTP server mounts under
	// /api/v1/{feature}. Handlers may rely on the caller identity being
	// present in the request context.
	Routes() chi.Router

	// BindPeer wires the back-reference to the paired ingestion half.
	// Called exactly once by the registry during composition.
	BindPeer(peer IngestionHalf)
}

// IngestionHalf is the transport-facing half of a feature.
//
// Implementations exclusively own their transport event stream: only the
// dispatch loop inside Run may poll it.
type IngestionHalf interface {
	// Descriptor returns the feature's identity.
	Descriptor() Descriptor

	// Run executes the ingestion dispatch loop until ctx is cancelled or
	// the event stream closes. Data errors never terminate the loop.
	Run(ctx context.Context) error

	// BindPeer wires the back-reference to the paired API half.
	// Called exactly once by the registry during composition.
	BindPeer(peer APIHalf)

	// Close releases the half's transport resources.
	Close() error
}

// Publisher is the narrow outbound-transport dependency of a feature.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventStream is the narrow inbound-transport dependency of a dispatch
// loop. *mqtt.Stream satisfies it. The stream is single-consumer; see
// mqtt.Stream for the ownership contract.
type EventStream interface {
	Events() <-chan mqtt.Event
	Topic() string
	Close() error
}

// Transport is the per-feature transport connection handed out by the
// registry. Each feature gets its own; closing it tears down the
// feature's subscriptions.
type Transport interface {
	Publisher
	Listen(topic string, qos byte) (EventStream, error)
	Close() error
}

// MQTTTransport adapts *mqtt.Client to the Transport interface
// (the concrete Listen returns *mqtt.Stream).
type MQTTTransport struct {
	*mqtt.Client
}

// Listen implements Transport.
func (t MQTTTransport) Listen(topic string, qos byte) (EventStream, error) {
	return t.Client.Listen(topic, qos)
}

// Notifier delivers fire-and-forget events to live subscribers
// (the websocket hub). Implementations must not block.
type Notifier interface {
	Notify(feature, event string, payload any)
}

// NopNotifier discards notifications; used when no hub is wired.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, string, any) {}

// PeerRef is the back-reference between the two halves of a feature.
//
// Both halves are created together, wired once, and co-terminate at
// process shutdown, so a nil peer at call time is a composition bug,
// not a runtime condition: Get panics instead of returning an error the
// caller would be tempted to swallow.
type PeerRef[T any] struct {
	mu    sync.RWMutex
	peer  T
	bound bool
}

// Bind sets the peer. Binding twice panics: pairs are wired exactly once.
func (p *PeerRef[T]) Bind(peer T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		panic("feature: peer reference bound twice")
	}
	p.peer = peer
	p.bound = true
}

// Get returns the peer, panicking if the reference was never bound.
func (p *PeerRef[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.bound {
		var zero T
		panic(fmt.Sprintf("feature: peer reference of type %T used before binding", zero))
	}
	return p.peer
}

// Bound reports whether the reference has been wired. Intended for the
// registry's own sanity checks, not for call-site branching.
func (p *PeerRef[T]) Bound() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bound
}
