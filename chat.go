package caigo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Stream exchange commands.
const (
	cmdCreateChat  = "create_chat"
	cmdSendMessage = "send_message"
	cmdRegenerate  = "generate_turn_candidate"
	cmdError       = "error"
)

// clientMessage is the envelope for every message sent on a duplex stream.
type clientMessage struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id"`
	Payload   any    `json:"payload,omitempty"`
}

// Chat is a logical conversation thread between the session's identity and
// a character. A Chat requires a live Session to issue further requests; it
// holds only the identifiers needed to do so, never the token or transport.
type Chat struct {
	// ID is the backend-assigned chat identifier.
	ID string
	// CharacterID is the character this chat is held with.
	CharacterID string

	sess *Session

	mu    sync.Mutex
	turns []*Turn
}

// Turns returns the turns observed so far, in append order.
func (c *Chat) Turns() []*Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// CreateChat opens a new chat with the given character. The backend replies
// with the chat identity and a greeting turn carrying at least one
// candidate.
func (s *Session) CreateChat(ctx context.Context, characterID string) (*Chat, *Turn, error) {
	if characterID == "" {
		return nil, nil, fmt.Errorf("character id is required: %w", ErrInvalidArgument)
	}

	res, err := s.exchange(ctx, cmdCreateChat, struct {
		CharacterID  string `json:"character_id"`
		WithGreeting bool   `json:"with_greeting"`
	}{characterID, true})
	if err != nil {
		return nil, nil, err
	}

	chatID := ""
	if res.chat != nil {
		chatID = res.chat.ChatID
	}
	if chatID == "" {
		chatID = res.turn.ChatID
	}
	if chatID == "" {
		return nil, nil, decodeErr(cmdCreateChat, "exchange completed without a chat id")
	}

	chat := &Chat{
		ID:          chatID,
		CharacterID: characterID,
		sess:        s,
		turns:       []*Turn{res.turn},
	}
	return chat, res.turn, nil
}

// SendMessage appends a user turn and awaits the generated reply turn. The
// exchange completes either as a single final frame or as a sequence of
// partial candidate updates terminated by a final frame; partials are
// buffered and never surfaced. The reply turn is appended to the chat in
// call order for callers that await each send in turn.
func (c *Chat) SendMessage(ctx context.Context, text string) (*Turn, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is required: %w", ErrInvalidArgument)
	}

	res, err := c.sess.exchange(ctx, cmdSendMessage, struct {
		CharacterID string `json:"character_id"`
		ChatID      string `json:"chat_id"`
		Text        string `json:"text"`
	}{c.CharacterID, c.ID, text})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.turns = append(c.turns, res.turn)
	c.mu.Unlock()
	return res.turn, nil
}

// Regenerate asks the backend for an additional candidate on an existing
// turn. The returned turn carries the grown candidate set; the backend's
// primary reassignment applies, earlier candidates are kept.
func (c *Chat) Regenerate(ctx context.Context, turnID string) (*Turn, error) {
	if turnID == "" {
		return nil, fmt.Errorf("turn id is required: %w", ErrInvalidArgument)
	}

	res, err := c.sess.exchange(ctx, cmdRegenerate, struct {
		ChatID string `json:"chat_id"`
		TurnID string `json:"turn_id"`
	}{c.ID, turnID})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for i, t := range c.turns {
		if t.ID == res.turn.ID {
			c.turns[i] = res.turn
			break
		}
	}
	c.mu.Unlock()
	return res.turn, nil
}

// History fetches the chat's recorded turns from the backend and replaces
// the locally observed sequence.
func (c *Chat) History(ctx context.Context) ([]*Turn, error) {
	turns, _, err := c.sess.fetchHistory(ctx, "fetch_history", c.ID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.turns = turns
	c.mu.Unlock()
	return turns, nil
}

// exchangeResult is the decoded outcome of one stream exchange.
type exchangeResult struct {
	chat *wireChat
	turn *Turn
}

// exchange runs one logical request/stream operation: open a stream, send
// the client message, buffer partial frames, and decode the collected state
// once the terminal frame is observed. The stream is closed on every exit
// path, so cancellation or failure never leaves a half-consumed stream
// behind, and buffered partial state is discarded rather than exposed.
func (s *Session) exchange(ctx context.Context, op string, payload any) (*exchangeResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.streamTimeout())
		defer cancel()
	}

	stream, err := s.tr.OpenStream(ctx, s.headers())
	if err != nil {
		return nil, transportErr(op, err)
	}
	defer func() { _ = stream.Close() }()

	reqID := uuid.NewString()
	if err := stream.Send(ctx, clientMessage{Command: op, RequestID: reqID, Payload: payload}); err != nil {
		return nil, transportErr(op, err)
	}

	res := &exchangeResult{}
	tc := newTurnCollector(op)
	for {
		frame, err := stream.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, timeoutErr(op, err)
			}
			return nil, transportErr(op, err)
		}
		if frame.RequestID != "" && frame.RequestID != reqID {
			// Frame for a different exchange; not ours to decode.
			continue
		}

		if frame.Command == cmdError {
			var ep errorPayload
			if err := json.Unmarshal(frame.Payload, &ep); err != nil {
				return nil, decodeErr(op, "malformed error frame: %v", err)
			}
			return nil, mapServerError(op, ep)
		}

		if len(frame.Payload) > 0 {
			var tp turnPayload
			if err := json.Unmarshal(frame.Payload, &tp); err != nil {
				return nil, decodeErr(op, "malformed frame payload: %v", err)
			}
			if tp.Chat != nil {
				res.chat = tp.Chat
			}
			if tp.Turn != nil {
				if err := tc.apply(tp.Turn); err != nil {
					return nil, err
				}
			}
		}

		if frame.Final {
			break
		}
	}

	turn, err := tc.finalize()
	if err != nil {
		return nil, err
	}
	res.turn = turn
	return res, nil
}

// mapServerError translates a backend error frame into the client taxonomy.
// Codes the client does not recognize surface as transport errors so callers
// can decide whether to retry.
func mapServerError(op string, ep errorPayload) error {
	switch ep.Code {
	case "character_not_found":
		return fmt.Errorf("%s: %w", op, ErrCharacterNotFound)
	case "chat_not_found":
		return fmt.Errorf("%s: %w", op, ErrChatNotFound)
	case "unauthorized":
		return fmt.Errorf("%s: %w", op, ErrAuthentication)
	default:
		return transportErr(op, fmt.Errorf("server error %q: %s", ep.Code, ep.Message))
	}
}
