package feature

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKind MessageKind
	}{
		{
			name:     "kind as numeric string",
			payload:  `{"kind":"0","payload":{"token":"abc","data":[]}}`,
			wantKind: 0,
		},
		{
			name:     "kind as bare number",
			payload:  `{"kind":1,"payload":{"token":"abc"}}`,
			wantKind: 1,
		},
		{
			name:     "multi-digit kind",
			payload:  `{"kind":"12","payload":{}}`,
			wantKind: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Kind != tt.wantKind {
				t.Errorf("expected kind %d, got %d", tt.wantKind, env.Kind)
			}
			if len(env.Payload) == 0 {
				t.Error("expected payload to be retained")
			}
		})
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"invalid utf-8", []byte{0xff, 0xfe, '{', '}'}},
		{"not json", []byte("kind=0")},
		{"empty", []byte("")},
		{"missing kind", []byte(`{"payload":{"token":"abc"}}`)},
		{"non-numeric kind", []byte(`{"kind":"telemetry","payload":{}}`)},
		{"missing payload", []byte(`{"kind":"0"}`)},
		{"kind is object", []byte(`{"kind":{"n":0},"payload":{}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.payload)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestMessageKindRoundTrip(t *testing.T) {
	data, err := json.Marshal(Envelope{Kind: 3, Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Firmware expects the tag serialised as a quoted numeric string.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if string(raw["kind"]) != `"3"` {
		t.Errorf("expected kind encoded as %q, got %s", `"3"`, raw["kind"])
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Kind != 3 {
		t.Errorf("expected kind 3 after round trip, got %d", env.Kind)
	}
}
