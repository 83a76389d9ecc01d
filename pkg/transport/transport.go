// Package transport provides the network adapter consumed by the caigo
// client: a plain request/response path for REST-style calls and a duplex
// stream path for the chat exchange protocol.
//
// The adapter is deliberately narrow. It knows nothing about chats, turns or
// candidates; it moves opaque JSON payloads and tags incoming stream frames
// as partial or final. Retry and reconnect policy at the socket level belongs
// to implementations of this package, never to the protocol layer above it.
package transport

import (
	"context"
	"encoding/json"
)

// Response is the result of a single request/response call.
type Response struct {
	// Status is the HTTP status code reported by the backend.
	Status int
	// Body is the raw response payload.
	Body []byte
}

// Frame is one decoded message from a duplex stream.
// A stream yields zero or more partial frames followed by exactly one frame
// with Final set; the protocol layer must not surface buffered state until
// the final frame is observed.
type Frame struct {
	// Command names the backend operation this frame belongs to.
	Command string `json:"command"`
	// RequestID correlates the frame with the client message that caused it.
	RequestID string `json:"request_id,omitempty"`
	// Final marks the terminal frame of an exchange.
	Final bool `json:"final,omitempty"`
	// Payload is the opaque frame body, decoded by the protocol layer.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Stream is one duplex exchange channel.
// A Stream is not safe for concurrent use; one exchange owns one stream.
type Stream interface {
	// Send writes a single message to the stream.
	Send(ctx context.Context, v any) error

	// Recv blocks until the next frame arrives, the context is done, or the
	// stream fails. The returned error is the raw transport error; mapping to
	// the client error taxonomy happens above.
	Recv(ctx context.Context) (*Frame, error)

	// Close releases the stream. Safe to call more than once.
	Close() error
}

// Transport abstracts the network layer under a client session.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Request performs a single request/response call against the backend.
	// A non-nil body is JSON-encoded. Non-2xx statuses are not errors at this
	// layer; the caller inspects Response.Status.
	Request(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error)

	// OpenStream opens a fresh duplex stream for one exchange.
	OpenStream(ctx context.Context, headers map[string]string) (Stream, error)

	// Close releases all resources held by the transport. Streams opened from
	// a closed transport fail; streams already open are torn down.
	Close() error
}
