// Package devicestatus ingests battery and sensor telemetry from field
// devices and exposes it over the HTTP API.
//
// Devices publish tagged envelopes on their uplink topic: kind 0 carries
// an array of component readings, kind 1 a heartbeat. Every message
// carries a signed identity token; telemetry is attributed to the owner
// that token resolves to, and each reading in a message is persisted
// independently so one bad item never discards its siblings.
//
// Persistence is hierarchical: one document per owner, devices nested
// inside it, components nested inside devices, each component carrying
// an append-only reading log with server-assigned timestamps. Device
// and component records are created on first sight, and reconnecting an
// already-known device appends a connect event rather than duplicating
// the record.
//
// When the time-series mirror is enabled, accepted readings are also
// written to InfluxDB for dashboarding.
//
// Performance Characteristics:
//   - One ensure-hierarchy pass per message, one update per reading
//   - Reading queries aggregate server-side; logs never load whole
//
// Security Considerations:
//   - Every inbound message is authenticated via its identity token;
//     unresolvable tokens abort that message only
//   - HTTP reads are scoped to the authenticated caller's own records
package devicestatus
