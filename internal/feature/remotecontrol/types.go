package remotecontrol

import (
	"time"

	"github.com/hearthlink/hearth-core/internal/feature"
)

// Message kinds devices publish on their uplink topic.
const (
	// KindAck reports the state a device settled in after a command.
	KindAck feature.MessageKind = 0
)

// ComponentState is the last state a device component acknowledged.
type ComponentState struct {
	ID        int       `bson:"id" json:"id"`
	State     string    `bson:"state" json:"state"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DeviceState groups the acknowledged states of one device.
type DeviceState struct {
	ID         string           `bson:"id" json:"id"`
	Components []ComponentState `bson:"components" json:"components"`
}

// OwnerRecord is the per-owner document holding all device states.
type OwnerRecord struct {
	Owner     string        `bson:"owner" json:"owner"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	Devices   []DeviceState `bson:"devices" json:"devices"`
}

// ackItem is one acknowledged component state inside a kind-0 payload.
type ackItem struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

// ackPayload is the kind-0 wire body.
type ackPayload struct {
	Token string    `json:"token"`
	Data  []ackItem `json:"data"`
}

// commandPayload is the downlink body published on the device command
// topic.
type commandPayload struct {
	Action      string `json:"action"`
	ComponentID int    `json:"component_id"`
}
