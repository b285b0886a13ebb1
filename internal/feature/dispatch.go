package feature

import (
	"context"

	"github.com/hearthlink/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

// Loop is the ingestion dispatch loop shared by every feature.
//
// It multiplexes the feature's private event stream and the exchange's
// request queue into the two feature callbacks, enforcing the bridge's
// error policy: per-message failures are logged and skipped, and the
// loop only ever exits on cancellation or stream closure. A single
// malformed or unauthenticated message must never stop ingestion of
// subsequent messages.
type Loop struct {
	// Feature is the owning feature's name, used for log attribution.
	Feature string

	// Stream is the exclusively-owned event stream. Run claims it; no
	// other goroutine may poll it.
	Stream EventStream

	// Exchange supplies web-originated requests. Optional: features
	// without a command surface leave it nil.
	Exchange *Exchange

	// OnMessage handles one decoded inbound envelope. A returned error
	// marks the message failed (logged, skipped); it never stops the loop.
	OnMessage func(ctx context.Context, topic string, env *Envelope) error

	// OnRequest handles one web-originated request and must reply to it.
	// Required when Exchange is set.
	OnRequest func(ctx context.Context, req *Request)

	// Logger receives per-message failure reports.
	Logger *logging.Logger
}

// Run executes the dispatch loop until ctx is cancelled or the event
// stream closes.
//
// State machine per message: poll → decode → handle (authenticate,
// persist) → poll, with every stage falling back to polling on failure.
// Only incoming publish events carry payloads; connection lifecycle
// events are observed for logging and otherwise discarded.
func (l *Loop) Run(ctx context.Context) error {
	events := l.Stream.Events()

	var requests <-chan *Request
	if l.Exchange != nil {
		requests = l.Exchange.Requests()
	}

	log := l.Logger.With("feature", l.Feature)
	log.Info("ingestion loop started", "topic", l.Stream.Topic())

	for {
		select {
		case <-ctx.Done():
			log.Info("ingestion loop stopping", "reason", ctx.Err())
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				log.Info("ingestion loop stopping", "reason", "event stream closed")
				return nil
			}
			l.handleEvent(ctx, ev, log)

		case req := <-requests:
			l.OnRequest(ctx, req)
		}
	}
}

// handleEvent processes a single stream event. Never returns an error:
// data failures end at the log line.
func (l *Loop) handleEvent(ctx context.Context, ev mqtt.Event, log *logging.Logger) {
	switch ev.Kind {
	case mqtt.EventPublish:
		// fall through to decode
	case mqtt.EventConnect:
		log.Debug("transport reconnected")
		return
	case mqtt.EventDisconnect:
		log.Warn("transport connection lost")
		return
	default:
		return
	}

	env, err := DecodeEnvelope(ev.Payload)
	if err != nil {
		log.Warn("dropping undecodable message",
			"topic", ev.Topic,
			"error", err,
		)
		return
	}

	if err := l.OnMessage(ctx, ev.Topic, env); err != nil {
		log.Warn("message handling failed",
			"topic", ev.Topic,
			"kind", int(env.Kind),
			"error", err,
		)
	}
}
