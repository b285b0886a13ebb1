package firealert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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

// Ingestion is the transport-facing half: it consumes the panel uplink
// stream, authenticates each message, persists alarms transactionally
// and pushes accepted alarms to live subscribers via the paired API
// half.
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

func (i *Ingestion) handleMessage(ctx context.Context, topic string, env *feature.Envelope) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device id in topic %q", feature.ErrMalformedMessage, topic)
	}

	switch env.Kind {
	case KindAlert:
		return i.handleAlert(ctx, env.Payload)
	case KindTestSignal:
		return i.handleTestSignal(ctx, env.Payload)
	default:
		return fmt.Errorf("%w: %d", feature.ErrUnknownKind, env.Kind)
	}
}

// handleAlert authenticates and persists a kind-0 alarm batch. Each
// alarm persists independently of its siblings, but every single alarm
// write is internally atomic.
func (i *Ingestion) handleAlert(ctx context.Context, payload json.RawMessage) error {
	var msg alertPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", feature.ErrMalformedMessage, err)
	}

	owner, err := i.resolver.Resolve(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range msg.Data {
		alert := Alert{Level: item.Level, Temperature: item.Temperature, At: now}
		if err := i.repo.PersistAlert(ctx, owner, item.ID, alert); err != nil {
			i.log.Error("alarm not persisted",
				"owner", owner,
				"detector_id", item.ID,
				"level", item.Level,
				"error", err,
			)
			continue
		}

		i.mirror.WriteAlert(owner, item.ID, item.Level, item.Temperature, now)
		i.pushAlert(owner, item.ID, alert)
	}
	return nil
}

// pushAlert forwards the accepted alarm to live subscribers through the
// paired API half. The peer is wired exactly once during composition, so
// anything other than this feature's API half is a wiring bug and panics.
func (i *Ingestion) pushAlert(owner, detectorID string, alert Alert) {
	api := feature.MustTransfer[*API](i.peer.Get())
	api.PushAlert(AlertEvent{Owner: owner, DetectorID: detectorID, Alert: alert})
}

func (i *Ingestion) handleTestSignal(ctx context.Context, payload json.RawMessage) error {
	var msg testPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", feature.ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: test signal without detector id", feature.ErrMalformedMessage)
	}

	owner, err := i.resolver.Resolve(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}
	return i.repo.RecordTestSignal(ctx, owner, msg.ID, time.Now().UTC())
}

// handleRequest services one web-originated command from the exchange.
func (i *Ingestion) handleRequest(ctx context.Context, req *feature.Request) {
	switch req.Action {
	case "silence":
		i.publishCommand(req, "silence")
	default:
		req.Reply(feature.Response{Status: http.StatusBadRequest, Message: "unknown action " + req.Action})
	}
}

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
