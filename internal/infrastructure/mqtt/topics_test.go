package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "device uplink",
			got:  topics.DeviceUplink("devicestatus", "esp32-01"),
			want: "hearth/devicestatus/device/esp32-01/up",
		},
		{
			name: "uplink wildcard",
			got:  topics.UplinkWildcard("firealert"),
			want: "hearth/firealert/device/+/up",
		},
		{
			name: "device command",
			got:  topics.DeviceCommand("remotecontrol", "plug-3"),
			want: "hearth/remotecontrol/device/plug-3/cmd",
		},
		{
			name: "system status",
			got:  topics.SystemStatus(),
			want: "hearth/system/status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"uplink topic", "hearth/firealert/device/det-7/up", "det-7"},
		{"command topic", "hearth/remotecontrol/device/plug-3/cmd", "plug-3"},
		{"wrong prefix", "other/firealert/device/det-7/up", ""},
		{"missing device segment", "hearth/firealert/det-7/up", ""},
		{"system topic", "hearth/system/status", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeviceIDFromTopic(tt.topic); got != tt.want {
				t.Errorf("DeviceIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}
