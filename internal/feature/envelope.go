package feature

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// MessageKind is the explicit numeric tag discriminating message types
// within a feature's namespace. Devices serialise it as a JSON string
// holding digits ("0"), some firmware as a bare number (0); both decode.
type MessageKind int

// UnmarshalJSON accepts the tag as a number or a numeric string.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("message kind %q is not numeric: %w", s, err)
	}
	*k = MessageKind(n)
	return nil
}

// MarshalJSON writes the tag as a numeric string, matching what device
// firmware publishes.
func (k MessageKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.Itoa(int(k)) + `"`), nil
}

// Envelope is the tagged-union wire format every feature speaks:
//
//	{"kind": "0", "payload": { ... feature-defined ... }}
//
// The kind field routes the payload to a handler; the payload body is
// decoded feature-side against the schema for that kind.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses raw transport payload bytes into an Envelope.
//
// Failures return ErrMalformedMessage (wrapped with detail); callers log
// and skip, they never treat a bad message as fatal.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedMessage)
	}

	var env struct {
		Kind    *MessageKind    `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if env.Kind == nil {
		return nil, fmt.Errorf("%w: missing kind tag", ErrMalformedMessage)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedMessage)
	}

	return &Envelope{Kind: *env.Kind, Payload: env.Payload}, nil
}
