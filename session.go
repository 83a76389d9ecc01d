package caigo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/caigo-dev/caigo/internal/metrics"
	"github.com/caigo-dev/caigo/pkg/transport"
)

// Backend request paths.
const (
	pathMe       = "/chat/user/"
	pathSettings = "/chat/user/settings/"
	pathHistory  = "/chat/history/%s/"
)

// State is the lifecycle state of a Session.
type State string

const (
	// StateOpen means the session accepts protocol operations.
	StateOpen State = "open"
	// StateClosing means the session is releasing its transport.
	StateClosing State = "closing"
	// StateClosed means the transport has been released; every further
	// operation fails with ErrSessionClosed.
	StateClosed State = "closed"
)

// Session is the authenticated, stateful handle through which all protocol
// operations are issued. It exclusively owns the identity token and the
// underlying transport; objects derived from it (Chat, Turn) hold neither.
// Sessions are safe for concurrent use, but the protocol layer makes no
// ordering promises between concurrent operations on one session.
type Session struct {
	cfg   Config
	token string
	tr    transport.Transport

	mu    sync.RWMutex
	state State

	account *Account
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Account returns the profile captured when the session was authenticated.
func (s *Session) Account() *Account {
	return s.account
}

// Close releases the underlying transport and marks the session closed.
// Close is idempotent: calling it on an already-closed session is a no-op,
// so it is safe to call unconditionally from cleanup paths. After Close
// returns, no operation on this session or on chats derived from it will
// attempt network I/O.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	tr := s.tr
	s.mu.Unlock()

	metrics.SessionClosed()
	err := tr.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// checkOpen rejects operations on a session that is not open, before any
// network call is attempted.
func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) headers() map[string]string {
	return map[string]string{
		"Authorization": "Token " + s.token,
	}
}

// request performs one request/response call with the session's auth
// context, mapping transport and auth failures to the client taxonomy.
func (s *Session) request(ctx context.Context, op, method, path string, body any) (*transport.Response, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	resp, err := s.tr.Request(ctx, method, path, body, s.headers())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutErr(op, err)
		}
		return nil, transportErr(op, err)
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthentication)
	}
	return resp, nil
}

// FetchChat loads an existing chat by id, including its recorded turns.
func (s *Session) FetchChat(ctx context.Context, chatID string) (*Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required: %w", ErrInvalidArgument)
	}

	turns, characterID, err := s.fetchHistory(ctx, "fetch_chat", chatID)
	if err != nil {
		return nil, err
	}
	return &Chat{
		ID:          chatID,
		CharacterID: characterID,
		sess:        s,
		turns:       turns,
	}, nil
}

// fetchHistory retrieves the recorded turns of a chat over the request path.
func (s *Session) fetchHistory(ctx context.Context, op, chatID string) ([]*Turn, string, error) {
	resp, err := s.request(ctx, op, http.MethodGet, fmt.Sprintf(pathHistory, chatID), nil)
	if err != nil {
		return nil, "", err
	}
	switch {
	case resp.Status == http.StatusNotFound:
		return nil, "", fmt.Errorf("%s %q: %w", op, chatID, ErrChatNotFound)
	case resp.Status != http.StatusOK:
		return nil, "", transportErr(op, errStatus(resp.Status))
	}

	var payload struct {
		Chat  *wireChat   `json:"chat,omitempty"`
		Turns []*wireTurn `json:"turns"`
	}
	if err := unmarshalBody(op, resp.Body, &payload); err != nil {
		return nil, "", err
	}

	turns := make([]*Turn, 0, len(payload.Turns))
	for _, w := range payload.Turns {
		turn, err := decodeTurn(op, w)
		if err != nil {
			return nil, "", err
		}
		turns = append(turns, turn)
	}

	characterID := ""
	if payload.Chat != nil {
		characterID = payload.Chat.CharacterID
	}
	return turns, characterID, nil
}
