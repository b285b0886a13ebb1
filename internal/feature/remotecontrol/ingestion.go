package remotecontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

// Actions a caller may send to a device.
var allowedActions = map[string]bool{
	"on":     true,
	"off":    true,
	"toggle": true,
	"set":    true,
}

// identityResolver is the narrow authentication dependency of the
// ingestion half. *identity.Resolver satisfies it.
type identityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Ingestion is the transport-facing half: it publishes user commands to
// devices and records the states they acknowledge.
type Ingestion struct {
	repo      Repository
	resolver  identityResolver
	publisher feature.Publisher
	stream    feature.EventStream
	exchange  *feature.Exchange
	peer      feature.PeerRef[feature.APIHalf]
	log       *logging.Logger
}

// Descriptor implements feature.IngestionHalf.
func (i *Ingestion) Descriptor() feature.Descriptor { return Desc() }

// BindPeer implements feature.IngestionHalf.
func (i *Ingestion) BindPeer(peer feature.APIHalf) { i.peer.Bind(peer) }

// Close releases the event stream.
func (i *Ingestion) Close() error {
	return i.stream.Close()
}

// Run executes the dispatch loop until ctx is cancelled or the stream
// closes.
func (i *Ingestion) Run(ctx context.Context) error {
	loop := &feature.Loop{
		Feature:   Name,
		Stream:    i.stream,
		Exchange:  i.exchange,
		Logger:    i.log,
		OnMessage: i.handleMessage,
		OnRequest: i.handleRequest,
	}
	return loop.Run(ctx)
}

func (i *Ingestion) handleMessage(ctx context.Context, topic string, env *feature.Envelope) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device id in topic %q", feature.ErrMalformedMessage, topic)
	}

	switch env.Kind {
	case KindAck:
		return i.handleAck(ctx, deviceID, env.Payload)
	default:
		return fmt.Errorf("%w: %d", feature.ErrUnknownKind, env.Kind)
	}
}

// handleAck authenticates a kind-0 ack and records the acknowledged
// states. Items persist independently.
func (i *Ingestion) handleAck(ctx context.Context, deviceID string, payload json.RawMessage) error {
	var msg ackPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", feature.ErrMalformedMessage, err)
	}

	owner, err := i.resolver.Resolve(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range msg.Data {
		if err := i.repo.RecordState(ctx, owner, deviceID, item.ID, item.State, now); err != nil {
			i.log.Warn("acknowledged state not recorded",
				"owner", owner,
				"device_id", deviceID,
				"component_id", item.ID,
				"error", err,
			)
		}
	}
	return nil
}

// handleRequest publishes one user command to the device's command
// topic and reports the outcome.
func (i *Ingestion) handleRequest(ctx context.Context, req *feature.Request) {
	if !allowedActions[req.Action] {
		req.Reply(feature.Response{Status: http.StatusBadRequest, Message: "unknown action " + req.Action})
		return
	}

	componentID, err := strconv.Atoi(req.ComponentID)
	if err != nil {
		req.Reply(feature.Response{Status: http.StatusBadRequest, Message: "component id must be numeric"})
		return
	}

	raw, err := json.Marshal(commandPayload{Action: req.Action, ComponentID: componentID})
	if err != nil {
		req.Reply(feature.Failed("command encoding failed"))
		return
	}
	body, err := json.Marshal(feature.Envelope{Kind: 0, Payload: raw})
	if err != nil {
		req.Reply(feature.Failed("command encoding failed"))
		return
	}

	topic := mqtt.Topics{}.DeviceCommand(Name, req.DeviceID)
	if err := i.publisher.Publish(topic, body, 1, false); err != nil {
		i.log.Error("command publish failed",
			"device_id", req.DeviceID,
			"action", req.Action,
			"error", err,
		)
		req.Reply(feature.Failed("command publish failed"))
		return
	}
	req.Reply(feature.OK(req.Action + " command sent"))
}
