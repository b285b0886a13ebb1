// Package mqtt provides MQTT client connectivity for Hearth Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Single-consumer event streams for feature ingestion loops
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the transport boundary between Hearth Core and physical devices.
// Each feature owns its own client connection scoped to the feature's topic
// namespace, so a slow consumer in one feature cannot stall another:
//
//	Devices ↔ MQTT Broker ↔ per-feature Client ↔ ingestion loop
//
// A feature's ingestion loop consumes a Stream, which is strictly
// single-consumer: only one goroutine may receive from it. Concurrent
// receivers are a contract violation, not merely discouraged.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Device identity is NOT derived from topics alone; payloads carry
//     signed identity tokens verified by the identity package
//
// # Performance Characteristics
//
//   - Publish latency: <10ms for QoS 1 to a local broker
//   - Reconnect: exponential backoff per config, subscriptions restored
//   - Stream buffering: bounded; overflow drops the oldest event and logs
package mqtt
