package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is a user-initiated action travelling from a feature's API
// half to its ingestion half.
//
// The correlation ID is generated at send time and echoed in the
// response. Each request also carries its own one-shot reply channel,
// so concurrent callers on the same feature can never receive each
// other's responses; correlation holds structurally, and the echoed ID is
// for logging and client visibility.
type Request struct {
	// ID is the correlation id, assigned by Exchange.Send.
	ID string

	// Action names the command (feature-defined, e.g. "identify", "set").
	Action string

	// DeviceID and ComponentID identify the target.
	DeviceID    string
	ComponentID string

	// Payload is the feature-defined command body.
	Payload json.RawMessage

	// Caller is the authenticated identity that issued the request.
	Caller string

	// reply is held behind a pointer so Request stays freely copyable;
	// the slot itself carries the one-shot guard.
	reply *replySlot
}

// replySlot is the per-request one-shot reply channel.
type replySlot struct {
	ch   chan Response
	once sync.Once
}

// Reply delivers the response for this request. At most one reply is
// ever delivered; later calls are no-ops. The response's correlation id
// is forced to match the request's.
func (r *Request) Reply(resp Response) {
	r.reply.once.Do(func() {
		resp.ID = r.ID
		r.reply.ch <- resp
	})
}

// Response is the outcome of a request, produced by the ingestion half
// after attempting to publish/execute it.
type Response struct {
	// ID echoes the request's correlation id.
	ID string `json:"id"`

	// Status is an HTTP-shaped status code.
	Status int `json:"status"`

	// Message is the human-readable outcome.
	Message string `json:"message"`
}

// OK builds a success response.
func OK(message string) Response {
	return Response{Status: http.StatusOK, Message: message}
}

// Failed builds a server-error response. The message must be generic;
// raw internal error detail never crosses the exchange.
func Failed(message string) Response {
	return Response{Status: http.StatusInternalServerError, Message: message}
}

// Exchange is the notification channel pair between a feature's halves:
// a bounded request queue flowing API→ingestion, with responses
// returning on per-request reply channels.
//
// Thread Safety: Send may be called from any number of concurrent HTTP
// handlers; Requests is consumed only by the feature's dispatch loop.
type Exchange struct {
	requests chan *Request
	timeout  time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewExchange creates an exchange with the given bounded queue capacity
// and per-request response timeout.
func NewExchange(capacity int, timeout time.Duration) *Exchange {
	if capacity < 1 {
		capacity = 1
	}
	return &Exchange{
		requests: make(chan *Request, capacity),
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Send enqueues a request and awaits its response.
//
// The call blocks no longer than the queue's backpressure plus the
// configured timeout, whichever bound is hit first; ctx cancellation is
// honoured at every suspension point. An unanswered device command must
// not hang the HTTP handler indefinitely.
//
// Parameters:
//   - ctx: The caller's request context
//   - req: The request; ID and reply plumbing are assigned here
//
// Returns:
//   - Response: The correlated response from the ingestion half
//   - error: ErrExchangeClosed, ErrRequestTimeout, or ctx error
func (e *Exchange) Send(ctx context.Context, req Request) (Response, error) {
	select {
	case <-e.done:
		return Response{}, ErrExchangeClosed
	default:
	}

	req.ID = uuid.NewString()
	req.reply = &replySlot{ch: make(chan Response, 1)}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case e.requests <- &req:
	case <-e.done:
		return Response{}, ErrExchangeClosed
	case <-ctx.Done():
		return Response{}, fmt.Errorf("enqueueing request: %w", ctx.Err())
	case <-timer.C:
		return Response{}, fmt.Errorf("%w: queue full for %v", ErrRequestTimeout, e.timeout)
	}

	select {
	case resp := <-req.reply.ch:
		return resp, nil
	case <-e.done:
		return Response{}, ErrExchangeClosed
	case <-ctx.Done():
		return Response{}, fmt.Errorf("awaiting response: %w", ctx.Err())
	case <-timer.C:
		return Response{}, fmt.Errorf("%w: no response within %v", ErrRequestTimeout, e.timeout)
	}
}

// Requests exposes the receive side of the queue to the ingestion half's
// dispatch loop.
func (e *Exchange) Requests() <-chan *Request {
	return e.requests
}

// Close shuts the exchange down. In-flight Send calls return
// ErrExchangeClosed; closing twice is a no-op.
func (e *Exchange) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
}
