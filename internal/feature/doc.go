// Package feature implements the feature-plugin bridge at the heart of
// Hearth Core.
//
// A feature (device-status tracking, fire-alert ingestion, remote
// control, ...) is composed of two halves with equal lifetimes:
//
//   - IngestionHalf: owns a transport connection scoped to the feature's
//     topic namespace and runs the ingestion dispatch loop for the
//     process lifetime.
//   - APIHalf: exposes a chi route fragment mounted by the HTTP server
//     and forwards user commands to the ingestion half.
//
// The halves run as separate tasks and rendezvous through an Exchange:
// a bounded request queue flowing API→ingestion, with each request
// carrying its own one-shot reply channel and a correlation id echoed in
// the response. For fire-and-forget notifications the halves also hold
// direct references to each other (PeerRef), wired at composition time
// by the Registry; an unbound peer at call time is a composition bug and
// panics rather than degrading silently.
//
// The Registry is the composition root: it builds one (IngestionHalf,
// APIHalf) pair per registered feature type atomically, so a transport
// or constructor failure never leaves a half-wired feature, and
// produces the homogeneous collections the web task and transport task
// each own. Transfer recovers concrete feature types from those
// collections when composition needs them back.
package feature
