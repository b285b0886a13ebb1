package firealert

import (
	"time"

	"github.com/hearthlink/hearth-core/internal/feature"
)

// Message kinds detectors publish on their uplink topic.
const (
	// KindAlert carries an array of alarm readings.
	KindAlert feature.MessageKind = 0

	// KindTestSignal reports a detector self-test.
	KindTestSignal feature.MessageKind = 1
)

// Alert is one logged alarm reading with its server-assigned timestamp.
type Alert struct {
	Level       int       `bson:"level" json:"level"`
	Temperature float64   `bson:"temperature" json:"temperature"`
	At          time.Time `bson:"at" json:"at"`
}

// Detector is one smoke/heat detector owned by an identity. Last* fields
// are denormalised at write time for the latest-alerts view.
type Detector struct {
	ID        string     `bson:"id" json:"id"`
	LastLevel *int       `bson:"last_level,omitempty" json:"last_level,omitempty"`
	LastTemp  *float64   `bson:"last_temp,omitempty" json:"last_temp,omitempty"`
	LastAt    *time.Time `bson:"last_at,omitempty" json:"last_at,omitempty"`
	LastTest  *time.Time `bson:"last_test,omitempty" json:"last_test,omitempty"`
	Alerts    []Alert    `bson:"alerts" json:"-"`
}

// OwnerRecord is the per-owner document holding all detectors.
type OwnerRecord struct {
	Owner     string     `bson:"owner" json:"owner"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	Detectors []Detector `bson:"detectors" json:"detectors"`
}

// alertItem is one alarm reading inside a kind-0 payload.
type alertItem struct {
	ID          string  `json:"id"`
	Level       int     `json:"level"`
	Temperature float64 `json:"temperature"`
}

// alertPayload is the kind-0 wire body.
type alertPayload struct {
	Token string      `json:"token"`
	Data  []alertItem `json:"data"`
}

// testPayload is the kind-1 wire body.
type testPayload struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

// commandPayload is the downlink body published on the panel command
// topic.
type commandPayload struct {
	Action string `json:"action"`
}

// AlertEvent is the body pushed to live subscribers when an alarm is
// accepted.
type AlertEvent struct {
	Owner      string `json:"owner"`
	DetectorID string `json:"detector_id"`
	Alert      Alert  `json:"alert"`
}
