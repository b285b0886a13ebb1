package mqtt

import (
	"sync"
	"sync/atomic"
)

// EventKind discriminates the events a Stream can deliver.
type EventKind int

const (
	// EventPublish is an incoming publish; Topic and Payload are set.
	EventPublish EventKind = iota

	// EventConnect signals the underlying connection (re)established.
	EventConnect

	// EventDisconnect signals the underlying connection was lost.
	EventDisconnect
)

// Event is a single occurrence on a Stream. Only EventPublish carries a
// payload; ingestion loops discard the other kinds without processing.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
}

// streamBuffer is the bounded per-stream event buffer. When a consumer
// falls this far behind, the oldest event is dropped and logged; QoS 1
// traffic is redelivered by the broker on reconnect anyway.
const streamBuffer = 64

// Stream is a single-consumer event stream over a topic subscription.
//
// A Stream is the exclusive property of one ingestion dispatch loop.
// Receiving from Events() in more than one goroutine is a contract
// violation: the first call to Events() claims the stream, and any
// later claim panics. This turns an easy-to-miss race into a loud
// composition bug.
type Stream struct {
	topic   string
	client  *Client
	events  chan Event
	claimed atomic.Bool

	mu     sync.Mutex // guards closed and channel closure vs. deliver
	closed bool
}

// Listen subscribes to a topic pattern and returns the event stream for it.
//
// The returned Stream delivers every publish on the pattern plus connection
// lifecycle events. It belongs to exactly one consumer; see Stream.
//
// Parameters:
//   - topic: The topic pattern to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - *Stream: Stream delivering events for the subscription
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Listen(topic string, qos byte) (*Stream, error) {
	s := &Stream{
		topic:  topic,
		client: c,
		events: make(chan Event, streamBuffer),
	}

	err := c.Subscribe(topic, qos, func(t string, payload []byte) error {
		s.deliver(Event{Kind: EventPublish, Topic: t, Payload: payload}, c.getLogger())
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.streamMu.Lock()
	c.streams[s] = struct{}{}
	c.streamMu.Unlock()

	return s, nil
}

// Events returns the receive channel for this stream.
//
// The first caller claims exclusive ownership; a second claim panics
// because two concurrent pollers on one stream indicate a wiring bug,
// not an environmental condition. The channel is closed when the stream
// or its client closes.
func (s *Stream) Events() <-chan Event {
	if !s.claimed.CompareAndSwap(false, true) {
		panic("mqtt: stream claimed by a second consumer (exclusive ownership violated)")
	}
	return s.events
}

// Topic returns the subscription pattern this stream was created with.
func (s *Stream) Topic() string {
	return s.topic
}

// Close unsubscribes from the topic and closes the event channel.
// Closing an already-closed stream is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.client.streamMu.Lock()
	delete(s.client.streams, s)
	s.client.streamMu.Unlock()

	if s.client.IsConnected() {
		return s.client.Unsubscribe(s.topic)
	}
	return nil
}

// markClosed closes the event channel without touching the subscription.
// Called by Client.Close, which tears down the whole connection.
func (s *Stream) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// deliver pushes an event into the buffer, dropping the oldest event on
// overflow so a stalled consumer never blocks the paho handler goroutine.
func (s *Stream) deliver(ev Event, logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-s.events:
			if logger != nil {
				logger.Warn("MQTT stream buffer full, dropping oldest event",
					"stream_topic", s.topic,
					"dropped_topic", dropped.Topic,
				)
			}
		default:
		}
	}
}
