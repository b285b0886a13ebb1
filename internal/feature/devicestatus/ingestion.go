package devicestatus

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
	"github.com/hearthlink/hearth-core/internal/infrastructure/tsdb"
)

// identityResolver is the narrow authentication dependency of the
// ingestion half. *identity.Resolver satisfies it.
type identityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Ingestion is the transport-facing half: it consumes the feature's
// uplink stream, authenticates each message, and persists readings.
type Ingestion struct {
	repo      Repository
	resolver  identityResolver
	mirror    *tsdb.Client
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

// handleMessage routes one decoded envelope by kind.
func (i *Ingestion) handleMessage(ctx context.Context, topic string, env *feature.Envelope) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device id in topic %q", feature.ErrMalformedMessage, topic)
	}

	switch env.Kind {
	case KindTelemetry:
		return i.handleTelemetry(ctx, deviceID, env.Payload)
	case KindHeartbeat:
		return i.handleHeartbeat(ctx, deviceID, env.Payload)
	default:
		return fmt.Errorf("%w: %d", feature.ErrUnknownKind, env.Kind)
	}
}

// handleTelemetry authenticates and persists a kind-0 reading batch.
// Items persist independently: a failed item is logged and skipped, the
// rest of the batch is still attempted.
func (i *Ingestion) handleTelemetry(ctx context.Context, deviceID string, payload json.RawMessage) error {
	var msg telemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", feature.ErrMalformedMessage, err)
	}

	owner, err := i.resolver.Resolve(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	now := time.Now().UTC()
	if err := i.repo.EnsureOwner(ctx, owner); err != nil {
		return err
	}
	if err := i.repo.EnsureDevice(ctx, owner, deviceID, now); err != nil {
		return err
	}

	for _, item := range msg.Data {
		if err := i.persistReading(ctx, owner, deviceID, item, now); err != nil {
			i.log.Warn("reading not persisted",
				"owner", owner,
				"device_id", deviceID,
				"component_id", item.ID,
				"error", err,
			)
			continue
		}
		i.mirror.WriteReading(owner, deviceID, strconv.Itoa(item.ID), item.Value, now)
	}
	return nil
}

func (i *Ingestion) persistReading(ctx context.Context, owner, deviceID string, item telemetryItem, at time.Time) error {
	if err := i.repo.EnsureComponent(ctx, owner, deviceID, item.ID); err != nil {
		return err
	}
	return i.repo.AppendReading(ctx, owner, deviceID, item.ID, item.Value, at)
}

// handleHeartbeat authenticates and records a kind-1 liveness ping.
func (i *Ingestion) handleHeartbeat(ctx context.Context, deviceID string, payload json.RawMessage) error {
	var msg heartbeatPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", feature.ErrMalformedMessage, err)
	}

	owner, err := i.resolver.Resolve(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	now := time.Now().UTC()
	if err := i.repo.EnsureOwner(ctx, owner); err != nil {
		return err
	}
	if err := i.repo.EnsureDevice(ctx, owner, deviceID, now); err != nil {
		return err
	}
	return i.repo.RecordHeartbeat(ctx, owner, deviceID, now)
}

// handleRequest services one web-originated command from the exchange.
func (i *Ingestion) handleRequest(ctx context.Context, req *feature.Request) {
	switch req.Action {
	case "identify":
		i.publishCommand(req, "identify")
	default:
		req.Reply(feature.Response{Status: http.StatusBadRequest, Message: "unknown action " + req.Action})
	}
}

// publishCommand sends a downlink envelope to the device's command
// topic and reports the publish outcome to the waiting HTTP handler.
func (i *Ingestion) publishCommand(req *feature.Request, action string) {
	raw, err := json.Marshal(commandPayload{Action: action})
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
			"action", action,
			"error", err,
		)
		req.Reply(feature.Failed("command publish failed"))
		return
	}
	req.Reply(feature.OK(action + " command sent"))
}
