package caigo

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the client.
var (
	// ErrAuthentication is returned when the backend rejects the token.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSessionClosed is returned when an operation is attempted on a closed
	// session. It is always detected locally, before any network call.
	ErrSessionClosed = errors.New("session is closed")

	// ErrCharacterNotFound is returned when the backend does not know the
	// requested character id.
	ErrCharacterNotFound = errors.New("character not found")

	// ErrChatNotFound is returned when a chat id cannot be resolved.
	ErrChatNotFound = errors.New("chat not found")

	// ErrCandidateNotFound is returned by Turn.Select for an id that does not
	// belong to the turn.
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrNoPrimaryCandidate is returned when a turn carries no primary
	// candidate. Decoding guarantees one, so observing this indicates an
	// internal invariant breach.
	ErrNoPrimaryCandidate = errors.New("turn has no primary candidate")

	// ErrInvalidArgument is returned for caller input rejected before any
	// network call.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransportError reports a network-level failure: connection errors, server
// faults, and exchange timeouts. Retrying is safe but is the caller's
// decision; the client never retries on its own.
type TransportError struct {
	// Op is the operation that failed, e.g. "send_message".
	Op string
	// Timeout marks exchanges that ran out of time waiting for the terminal
	// frame.
	Timeout bool
	// Err is the underlying cause.
	Err error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: transport timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a backend payload that violates the protocol schema,
// such as a turn with zero candidates or missing identifiers. It is not
// retryable without caller intervention.
type DecodeError struct {
	// Op is the operation whose response failed to decode.
	Op string
	// Reason describes the schema violation.
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %s", e.Op, e.Reason)
}

func errStatus(status int) error {
	return fmt.Errorf("unexpected status %d", status)
}

func transportErr(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func timeoutErr(op string, err error) *TransportError {
	return &TransportError{Op: op, Timeout: true, Err: err}
}

func decodeErr(op, format string, args ...any) *DecodeError {
	return &DecodeError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
