// Package caigo is an asynchronous client for a character-driven
// conversational AI backend. It authenticates an identity token, maintains
// logical chat sessions against the backend, sends user turns, and decodes
// the one-or-many response candidates the backend generates per turn.
//
// All protocol operations hang off a Session obtained from Authenticate.
// The session exclusively owns the token and the network transport; closing
// it releases the transport and makes every further operation fail with
// ErrSessionClosed before any I/O is attempted.
//
//	sess, err := caigo.Authenticate(ctx, token)
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	chat, greeting, err := sess.CreateChat(ctx, characterID)
//	if err != nil {
//		return err
//	}
//	reply, err := chat.SendMessage(ctx, "hello")
package caigo

import (
	"context"
	"fmt"

	"github.com/caigo-dev/caigo/internal/metrics"
	"github.com/caigo-dev/caigo/pkg/transport"
)

// options collects construction-time settings for Authenticate.
type options struct {
	cfg Config
	tr  transport.Transport
}

// Option configures Authenticate.
type Option func(*options)

// WithConfig replaces the default client configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTransport injects a transport, bypassing the built-in HTTP/WebSocket
// implementation. Used for testing and for callers with their own network
// stack.
func WithTransport(tr transport.Transport) Option {
	return func(o *options) { o.tr = tr }
}

// Authenticate validates the token against the backend and returns an open
// Session. The token is validated with a profile probe: a rejected token
// yields ErrAuthentication, a network failure a *TransportError. The caller
// must Close the returned session to release the transport.
func Authenticate(ctx context.Context, token string, opts ...Option) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required: %w", ErrInvalidArgument)
	}

	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.validate(); err != nil {
		return nil, err
	}

	tr := o.tr
	if tr == nil {
		var err error
		tr, err = transport.NewHTTP(transport.Options{
			BaseURL:           o.cfg.BaseURL,
			StreamURL:         o.cfg.StreamURL,
			RequestTimeout:    o.cfg.requestTimeout(),
			UserAgent:         o.cfg.UserAgent,
			RequestsPerSecond: o.cfg.RateLimit.RequestsPerSecond,
			Burst:             o.cfg.RateLimit.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("build transport: %w", err)
		}
	}

	sess := &Session{
		cfg:   o.cfg,
		token: token,
		tr:    tr,
		state: StateOpen,
	}

	account, err := sess.fetchMe(ctx, "authenticate")
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	sess.account = account

	metrics.SessionOpened()
	return sess, nil
}
