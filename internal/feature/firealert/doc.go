// Package firealert ingests smoke and heat detector alarms and fans
// them out to live subscribers.
//
// Detectors publish tagged envelopes on their uplink topic: kind 0
// carries an array of alarm readings (level and temperature per
// detector), kind 1 a periodic test signal. Unlike routine telemetry,
// an alarm batch is persisted atomically: the ensure-detector and
// append-alert writes run inside a MongoDB session transaction so a
// crash mid-write can never leave a detector record without its alarm.
//
// Accepted alarms are also pushed fire-and-forget to the websocket hub
// through the paired API half, bypassing the request queue entirely, so
// browsers see an alarm within one in-process call of ingestion.
//
// Security Considerations:
//   - Every inbound message is authenticated via its identity token
//   - Alarm pushes carry no token material, only owner-scoped data
package firealert
