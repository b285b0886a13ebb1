package devicestatus

import (
	"time"

	"github.com/hearthlink/hearth-core/internal/feature"
)

// Message kinds devices publish on their uplink topic.
const (
	// KindTelemetry carries an array of component readings.
	KindTelemetry feature.MessageKind = 0

	// KindHeartbeat signals the device is alive without data.
	KindHeartbeat feature.MessageKind = 1
)

// Reading is one logged component value with its server-assigned
// timestamp.
type Reading struct {
	Value float64   `bson:"value" json:"value"`
	At    time.Time `bson:"at" json:"at"`
}

// Component is one sensor or battery channel on a device. The log is
// append-only; LastValue/LastAt are denormalised at write time so reads
// never unwind the log for the current value.
type Component struct {
	ID        int       `bson:"id" json:"id"`
	LastValue *float64  `bson:"last_value,omitempty" json:"last_value,omitempty"`
	LastAt    *time.Time `bson:"last_at,omitempty" json:"last_at,omitempty"`
	Log       []Reading `bson:"log" json:"-"`
}

// ConnectEvent records one connect of an already-provisioned device.
type ConnectEvent struct {
	At time.Time `bson:"at" json:"at"`
}

// Device is one field device owned by an identity.
type Device struct {
	ID          string         `bson:"id" json:"id"`
	ConnectedAt time.Time      `bson:"connected_at" json:"connected_at"`
	LastSeen    *time.Time     `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	ConnectLog  []ConnectEvent `bson:"connect_log" json:"-"`
	Components  []Component    `bson:"components" json:"components"`
}

// OwnerRecord is the per-owner document holding all of that owner's
// devices. Created empty the first time the owner is seen.
type OwnerRecord struct {
	Owner     string    `bson:"owner" json:"owner"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	Devices   []Device  `bson:"devices" json:"devices"`
}

// telemetryItem is one reading inside a kind-0 payload.
type telemetryItem struct {
	ID    int     `json:"id"`
	Value float64 `json:"value"`
}

// telemetryPayload is the kind-0 wire body.
type telemetryPayload struct {
	Token string          `json:"token"`
	Data  []telemetryItem `json:"data"`
}

// heartbeatPayload is the kind-1 wire body.
type heartbeatPayload struct {
	Token string `json:"token"`
}

// commandPayload is the downlink body published on the device command
// topic.
type commandPayload struct {
	Action string `json:"action"`
}
