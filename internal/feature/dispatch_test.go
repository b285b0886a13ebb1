package feature

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

// fakeStream feeds hand-crafted events to a dispatch loop.
type fakeStream struct {
	events    chan mqtt.Event
	topic     string
	closeOnce sync.Once
}

func newFakeStream(topic string) *fakeStream {
	return &fakeStream{events: make(chan mqtt.Event, 16), topic: topic}
}

func (s *fakeStream) Events() <-chan mqtt.Event { return s.events }
func (s *fakeStream) Topic() string             { return s.topic }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func (s *fakeStream) publish(topic, payload string) {
	s.events <- mqtt.Event{Kind: mqtt.EventPublish, Topic: topic, Payload: []byte(payload)}
}

func TestLoopDeliversDecodedMessages(t *testing.T) {
	stream := newFakeStream("hearth/test/device/+/up")

	type received struct {
		topic string
		kind  MessageKind
	}
	got := make(chan received, 4)

	loop := &Loop{
		Feature: "test",
		Stream:  stream,
		Logger:  testLogger(),
		OnMessage: func(_ context.Context, topic string, env *Envelope) error {
			got <- received{topic: topic, kind: env.Kind}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	stream.publish("hearth/test/device/a1/up", `{"kind":"0","payload":{"token":"t"}}`)
	stream.publish("hearth/test/device/a1/up", `{"kind":1,"payload":{"token":"t"}}`)

	for _, want := range []MessageKind{0, 1} {
		select {
		case r := <-got:
			if r.kind != want {
				t.Errorf("expected kind %d, got %d", want, r.kind)
			}
			if r.topic != "hearth/test/device/a1/up" {
				t.Errorf("unexpected topic %q", r.topic)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message delivery")
		}
	}

	stream.Close()
	if err := <-done; err != nil {
		t.Errorf("expected clean exit on stream close, got %v", err)
	}
}

func TestLoopSurvivesBadMessages(t *testing.T) {
	stream := newFakeStream("hearth/test/device/+/up")

	got := make(chan MessageKind, 4)
	loop := &Loop{
		Feature: "test",
		Stream:  stream,
		Logger:  testLogger(),
		OnMessage: func(_ context.Context, _ string, env *Envelope) error {
			got <- env.Kind
			if env.Kind == 1 {
				return errors.New("handler rejected message")
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// Garbage, then a handler failure, then a good message. The loop
	// must still be alive to deliver the last one.
	stream.publish("hearth/test/device/a1/up", `not json at all`)
	stream.publish("hearth/test/device/a1/up", `{"kind":1,"payload":{}}`)
	stream.publish("hearth/test/device/a1/up", `{"kind":0,"payload":{}}`)

	var kinds []MessageKind
	for len(kinds) < 2 {
		select {
		case k := <-got:
			kinds = append(kinds, k)
		case <-time.After(time.Second):
			t.Fatalf("timed out; delivered so far: %v", kinds)
		}
	}
	if kinds[0] != 1 || kinds[1] != 0 {
		t.Errorf("expected kinds [1 0], got %v", kinds)
	}

	stream.Close()
	if err := <-done; err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}
}

func TestLoopDiscardsConnectionEvents(t *testing.T) {
	stream := newFakeStream("hearth/test/device/+/up")

	got := make(chan struct{}, 4)
	loop := &Loop{
		Feature: "test",
		Stream:  stream,
		Logger:  testLogger(),
		OnMessage: func(context.Context, string, *Envelope) error {
			got <- struct{}{}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	stream.events <- mqtt.Event{Kind: mqtt.EventDisconnect}
	stream.events <- mqtt.Event{Kind: mqtt.EventConnect}
	stream.publish("hearth/test/device/a1/up", `{"kind":"0","payload":{}}`)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish after connection events")
	}

	select {
	case <-got:
		t.Error("connection events must not reach the message handler")
	default:
	}

	stream.Close()
	<-done
}

func TestLoopServicesExchangeRequests(t *testing.T) {
	stream := newFakeStream("hearth/test/device/+/up")
	ex := NewExchange(4, time.Second)
	defer ex.Close()

	loop := &Loop{
		Feature:  "test",
		Stream:   stream,
		Exchange: ex,
		Logger:   testLogger(),
		OnMessage: func(context.Context, string, *Envelope) error {
			return nil
		},
		OnRequest: func(_ context.Context, req *Request) {
			req.Reply(OK("handled " + req.Action))
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	resp, err := ex.Send(context.Background(), Request{Action: "toggle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "handled toggle" {
		t.Errorf("unexpected response message %q", resp.Message)
	}

	stream.Close()
	<-done
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	stream := newFakeStream("hearth/test/device/+/up")
	loop := &Loop{
		Feature:   "test",
		Stream:    stream,
		Logger:    testLogger(),
		OnMessage: func(context.Context, string, *Envelope) error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
}
