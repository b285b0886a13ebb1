package mqtt

import (
	"fmt"
	"strings"
)

// Topic scheme for Hearth Core.
//
// All feature topics follow the device-scoped scheme:
//
//	hearth/{feature}/device/{device_id}/up   telemetry from the device
//	hearth/{feature}/device/{device_id}/cmd  commands to the device
//
// The device identity is embedded in the topic name so brokers can apply
// per-device ACLs, but attribution of telemetry to an owner always goes
// through the signed token inside the payload, never the topic alone.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	up := topics.DeviceUplink("firealert", "det-7")
//	// Returns: "hearth/firealert/device/det-7/up"
type Topics struct{}

// DeviceUplink returns the telemetry topic a specific device publishes on.
//
// Example: hearth/devicestatus/device/esp32-01/up
func (Topics) DeviceUplink(feature, deviceID string) string {
	return fmt.Sprintf("%s/%s/device/%s/up", TopicPrefix, feature, deviceID)
}

// UplinkWildcard returns the subscription pattern covering every device's
// telemetry topic within a feature's namespace.
//
// Example: hearth/devicestatus/device/+/up
func (Topics) UplinkWildcard(feature string) string {
	return fmt.Sprintf("%s/%s/device/+/up", TopicPrefix, feature)
}

// DeviceCommand returns the command topic for a specific device.
//
// Example: hearth/remotecontrol/device/plug-3/cmd
func (Topics) DeviceCommand(feature, deviceID string) string {
	return fmt.Sprintf("%s/%s/device/%s/cmd", TopicPrefix, feature, deviceID)
}

// SystemStatus returns the topic for core online/offline status.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceIDFromTopic extracts the device identity embedded in a feature
// topic. It returns the empty string if the topic does not follow the
// device-scoped scheme.
//
// Example: "hearth/firealert/device/det-7/up" → "det-7"
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	// hearth/{feature}/device/{device_id}/{direction}
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[2] != "device" {
		return ""
	}
	return parts[3]
}
