package feature

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hearthlink/hearth-core/internal/identity"
	"github.com/hearthlink/hearth-core/internal/infrastructure/config"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlink/hearth-core/internal/infrastructure/tsdb"
)

// FailurePolicy decides how registration failures affect startup.
type FailurePolicy int

const (
	// FailContinue skips the failed feature and starts degraded.
	FailContinue FailurePolicy = iota

	// FailAbort fails the whole registration pass on the first error.
	FailAbort
)

// ParseFailurePolicy maps a configuration string onto a FailurePolicy.
//
// Returns:
//   - FailurePolicy: Parsed policy
//   - error: If the string names no known policy
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "continue":
		return FailContinue, nil
	case "abort":
		return FailAbort, nil
	default:
		return FailContinue, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Deps bundles the shared infrastructure handed to every feature
// constructor. Constructors take what they need and ignore the rest.
type Deps struct {
	// DB is the service database. Features own their collections within it.
	DB *mongo.Database

	// MongoClient is the underlying client, exposed for features that
	// need sessions for multi-document transactions.
	MongoClient *mongo.Client

	// Resolver authenticates device-presented identity tokens.
	Resolver *identity.Resolver

	// SigningKey is the shared token signing secret.
	SigningKey string

	// TSDB is the optional time-series mirror. Nil-safe: features may
	// call it unconditionally.
	TSDB *tsdb.Client

	// Events pushes live notifications to connected browsers.
	Events Notifier

	// Logger is the parent logger; features derive their own from it.
	Logger *logging.Logger

	// QueueCapacity bounds each feature's request queue.
	QueueCapacity int

	// RequestTimeout bounds each request/response round trip.
	RequestTimeout time.Duration
}

// Constructor builds one feature's half pair. The transport and
// exchange passed in are owned by the pair from this point on; the
// registry only reclaims them if construction fails.
type Constructor func(ctx context.Context, deps Deps, transport Transport, exchange *Exchange) (APIHalf, IngestionHalf, error)

// Registration declares one feature to the registry.
type Registration struct {
	Desc Descriptor
	New  Constructor
}

// pair is one successfully constructed feature.
type pair struct {
	desc      Descriptor
	api       APIHalf
	ingestion IngestionHalf
	transport Transport
	exchange  *Exchange
}

// Registry assembles and runs the feature set.
//
// Build constructs each enabled feature atomically: a feature either
// registers completely, with both halves cross-bound and its transport
// connected, or not at all, with every partial resource released. A
// half-registered feature never exists.
type Registry struct {
	registrations []Registration
	deps          Deps
	connect       func(ctx context.Context, clientID string) (Transport, error)
	policy        FailurePolicy
	log           *logging.Logger

	mu    sync.Mutex
	pairs []*pair
	wg    sync.WaitGroup
}

// NewRegistry creates a registry.
//
// Parameters:
//   - deps: Shared infrastructure passed to every constructor
//   - connect: Factory producing one connected transport per feature,
//     keyed by MQTT client ID
//   - policy: What a registration failure does to the rest of the pass
//   - logger: Parent logger
func NewRegistry(deps Deps, connect func(ctx context.Context, clientID string) (Transport, error), policy FailurePolicy, logger *logging.Logger) *Registry {
	return &Registry{
		deps:    deps,
		connect: connect,
		policy:  policy,
		log:     logger.With("component", "registry"),
	}
}

// Register declares a feature. Call before Build; later calls are ignored
// by Run.
func (r *Registry) Register(reg Registration) {
	r.registrations = append(r.registrations, reg)
}

// Build constructs every feature that the configuration enables.
//
// A feature runs when it is on by default and not listed in
// features.disabled, or off by default and listed in features.enabled.
//
// Under FailContinue a failed feature is logged and skipped; under
// FailAbort the first failure tears down everything already built and
// Build returns the error.
func (r *Registry) Build(ctx context.Context, fc config.FeaturesConfig) error {
	for _, reg := range r.registrations {
		if !featureWanted(reg.Desc, fc) {
			r.log.Info("feature not enabled", "feature", reg.Desc.Name)
			continue
		}

		p, err := r.buildOne(ctx, reg)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrRegistrationFailed, reg.Desc.Name, err)
			if r.policy == FailAbort {
				r.Close()
				return err
			}
			r.log.Error("feature registration failed, continuing without it",
				"feature", reg.Desc.Name,
				"error", err,
			)
			continue
		}

		r.mu.Lock()
		r.pairs = append(r.pairs, p)
		r.mu.Unlock()
		r.log.Info("feature registered", "feature", reg.Desc.Name)
	}
	return nil
}

// buildOne constructs a single pair, releasing every partial resource
// on failure.
func (r *Registry) buildOne(ctx context.Context, reg Registration) (*pair, error) {
	transport, err := r.connect(ctx, reg.Desc.Name)
	if err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}

	exchange := NewExchange(r.deps.QueueCapacity, r.deps.RequestTimeout)

	api, ingestion, err := reg.New(ctx, r.deps, transport, exchange)
	if err != nil {
		exchange.Close()
		if cerr := transport.Close(); cerr != nil {
			r.log.Warn("transport close during rollback failed",
				"feature", reg.Desc.Name,
				"error", cerr,
			)
		}
		return nil, err
	}

	api.BindPeer(ingestion)
	ingestion.BindPeer(api)

	return &pair{
		desc:      reg.Desc,
		api:       api,
		ingestion: ingestion,
		transport: transport,
		exchange:  exchange,
	}, nil
}

func featureWanted(d Descriptor, fc config.FeaturesConfig) bool {
	if d.DefaultOn {
		return !slices.Contains(fc.Disabled, d.Name)
	}
	return slices.Contains(fc.Enabled, d.Name)
}

// Run starts every registered ingestion half. It blocks until ctx is
// cancelled and all loops have stopped.
func (r *Registry) Run(ctx context.Context) {
	r.mu.Lock()
	pairs := slices.Clone(r.pairs)
	r.mu.Unlock()

	for _, p := range pairs {
		p := p
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := p.ingestion.Run(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("ingestion half exited",
					"feature", p.desc.Name,
					"error", err,
				)
			}
		}()
	}

	<-ctx.Done()
	r.Close()
	r.wg.Wait()
}

// Close shuts down every registered feature: exchanges stop accepting
// requests, ingestion halves release their resources, transports
// disconnect. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	pairs := r.pairs
	r.pairs = nil
	r.mu.Unlock()

	for _, p := range pairs {
		p.exchange.Close()
		if err := p.ingestion.Close(); err != nil {
			r.log.Warn("ingestion close failed", "feature", p.desc.Name, "error", err)
		}
		if err := p.transport.Close(); err != nil {
			r.log.Warn("transport close failed", "feature", p.desc.Name, "error", err)
		}
	}
}

// APIHalves returns the web half of every registered feature, in
// registration order.
func (r *Registry) APIHalves() []APIHalf {
	r.mu.Lock()
	defer r.mu.Unlock()

	halves := make([]APIHalf, 0, len(r.pairs))
	for _, p := range r.pairs {
		halves = append(halves, p.api)
	}
	return halves
}

// IngestionHalves returns the transport half of every registered
// feature, in registration order. Run consumes the same collection;
// this accessor exists for callers that drive the loops themselves.
func (r *Registry) IngestionHalves() []IngestionHalf {
	r.mu.Lock()
	defer r.mu.Unlock()

	halves := make([]IngestionHalf, 0, len(r.pairs))
	for _, p := range r.pairs {
		halves = append(halves, p.ingestion)
	}
	return halves
}

// Enabled returns the descriptors of every registered feature.
func (r *Registry) Enabled() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p.desc)
	}
	return out
}

// Optional returns the descriptors of declared features that are off
// by default, whether or not they are currently registered.
func (r *Registry) Optional() []Descriptor {
	var out []Descriptor
	for _, reg := range r.registrations {
		if !reg.Desc.DefaultOn {
			out = append(out, reg.Desc)
		}
	}
	return out
}

// Lookup finds a registered API half by feature name and transfers it
// to the concrete type the caller expects.
//
// Returns:
//   - T: The half as its concrete type
//   - bool: False when no such feature is registered or the half is not a T
func Lookup[T any](r *Registry, name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pairs {
		if p.desc.Name == name {
			return Transfer[T](p.api)
		}
	}
	var zero T
	return zero, false
}
