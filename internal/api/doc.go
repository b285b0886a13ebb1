// Package api provides the HTTP REST API and WebSocket server for
// Hearth Core.
//
// It exposes authentication, feature listing and per-feature route
// fragments to user interfaces, and relays live feature events to
// WebSocket subscribers.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Feature routes are mounted under /api/v1/{feature} from the route
// fragments each registered API half supplies; the server itself owns
// only the cross-cutting surface (health, auth, feature discovery, the
// WebSocket endpoint).
//
// Security Considerations:
//   - All feature routes sit behind bearer-token authentication; the
//     verified caller identity travels in the request context
//   - WebSocket connections authenticate via single-use tickets so
//     access tokens never appear in URLs
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
