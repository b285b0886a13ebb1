// Package remotecontrol relays user commands to field devices and
// tracks the state they acknowledge.
//
// The feature is command-first: an HTTP action travels over the feature
// exchange to the ingestion half, which publishes it on the device's
// command topic and reports the publish outcome back to the waiting
// handler. There is no retry at this layer; the device acknowledges by
// publishing a kind-0 ack on its uplink topic, which updates the
// last-reported component state in the database.
//
// Remote control is off by default and enabled per deployment.
package remotecontrol
