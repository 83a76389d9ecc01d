package caigo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caigo-dev/caigo/pkg/transport"
)

// fakeTransport counts every network call so tests can assert that closed
// sessions perform zero I/O.
type fakeTransport struct {
	mu       sync.Mutex
	requests int
	streams  int
	closes   int

	requestFn func(method, path string, body any, headers map[string]string) (*transport.Response, error)
	streamFn  func() (transport.Stream, error)
	closeFn   func() error
}

func (f *fakeTransport) Request(_ context.Context, method, path string, body any, headers map[string]string) (*transport.Response, error) {
	f.mu.Lock()
	f.requests++
	fn := f.requestFn
	f.mu.Unlock()
	if fn == nil {
		return &transport.Response{Status: 200, Body: meBody}, nil
	}
	return fn(method, path, body, headers)
}

func (f *fakeTransport) OpenStream(_ context.Context, _ map[string]string) (transport.Stream, error) {
	f.mu.Lock()
	f.streams++
	fn := f.streamFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no stream scripted")
	}
	return fn()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	fn := f.closeFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests + f.streams
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeStream serves a scripted frame sequence. With block set, Recv hangs
// after the script runs out until the context is done, which is how tests
// model a backend that never sends the terminal frame.
type fakeStream struct {
	mu     sync.Mutex
	frames []*transport.Frame
	sent   []any
	block  bool
	closed int
}

func (f *fakeStream) Send(_ context.Context, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeStream) Recv(ctx context.Context) (*transport.Frame, error) {
	f.mu.Lock()
	if len(f.frames) > 0 {
		frame := f.frames[0]
		f.frames = f.frames[1:]
		f.mu.Unlock()
		return frame, nil
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, io.EOF
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeStream) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var meBody = []byte(`{"user":{"user":{"id":7,"username":"alice","name":"Alice"}}}`)

func frame(command string, final bool, payload any) *transport.Frame {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return &transport.Frame{Command: command, Final: final, Payload: raw}
}

func candidate(id, text string, final bool) wireCandidate {
	return wireCandidate{CandidateID: id, RawContent: text, IsFinal: final}
}

func turnUpdate(chatID, turnID, primaryID string, candidates ...wireCandidate) turnPayload {
	return turnPayload{
		Turn: &wireTurn{
			TurnKey:            wireTurnKey{ChatID: chatID, TurnID: turnID},
			Author:             wireAuthor{AuthorID: "char-1", Name: "Character"},
			Candidates:         candidates,
			PrimaryCandidateID: primaryID,
		},
	}
}

func newTestSession(t *testing.T, ft *fakeTransport) *Session {
	t.Helper()
	sess, err := Authenticate(context.Background(), "secret-token", WithTransport(ft))
	require.NoError(t, err)
	return sess
}
