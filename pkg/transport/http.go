package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/caigo-dev/caigo/internal/metrics"
)

// ErrClosed is returned when operating on a closed transport.
var ErrClosed = errors.New("transport is closed")

// Options configures the HTTP/WebSocket transport.
type Options struct {
	// BaseURL is the request/response endpoint root, e.g. "https://plus.example.ai".
	BaseURL string
	// StreamURL is the duplex stream endpoint, e.g. "wss://neo.example.ai/ws/".
	StreamURL string
	// RequestTimeout bounds each request/response call.
	RequestTimeout time.Duration
	// UserAgent is sent on every request and stream handshake.
	UserAgent string
	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

// httpTransport implements Transport over net/http and gorilla/websocket.
type httpTransport struct {
	baseURL   string
	streamURL string
	userAgent string
	client    *http.Client
	dialer    *websocket.Dialer
	limiter   *rate.Limiter

	mu      sync.Mutex
	closed  bool
	streams map[*wsStream]struct{}
}

// NewHTTP creates the production transport.
func NewHTTP(opts Options) (Transport, error) {
	if opts.BaseURL == "" || opts.StreamURL == "" {
		return nil, errors.New("transport: base and stream URLs are required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if _, err := url.Parse(opts.StreamURL); err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}

	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &httpTransport{
		baseURL:   opts.BaseURL,
		streamURL: opts.StreamURL,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		limiter: limiter,
		streams: make(map[*wsStream]struct{}),
	}, nil
}

// Request performs a single request/response call.
func (t *httpTransport) Request(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.RecordRequest(method, path, 0, time.Since(start))
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	metrics.RecordRequest(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: payload}, nil
}

// OpenStream dials a fresh duplex stream.
func (t *httpTransport) OpenStream(ctx context.Context, headers map[string]string) (Stream, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	h := http.Header{}
	if t.userAgent != "" {
		h.Set("User-Agent", t.userAgent)
	}
	for k, v := range headers {
		h.Set(k, v)
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.streamURL, h)
	metrics.RecordStreamOpen(err)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	s := &wsStream{conn: conn, owner: t}
	t.mu.Lock()
	t.streams[s] = struct{}{}
	t.mu.Unlock()
	return s, nil
}

// Close tears down all open streams and marks the transport closed.
func (t *httpTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	open := make([]*wsStream, 0, len(t.streams))
	for s := range t.streams {
		open = append(open, s)
	}
	t.streams = nil
	t.mu.Unlock()

	for _, s := range open {
		_ = s.Close()
	}
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpTransport) check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

func (t *httpTransport) forget(s *wsStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streams != nil {
		delete(t.streams, s)
	}
}

// wsStream adapts one websocket connection to the Stream interface.
type wsStream struct {
	conn  *websocket.Conn
	owner *httpTransport

	mu     sync.Mutex
	closed bool
}

// Send writes one JSON message to the stream.
func (s *wsStream) Send(ctx context.Context, v any) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Recv reads the next frame. Context deadlines are applied as read
// deadlines; plain cancellation interrupts a pending read by expiring the
// deadline early.
func (s *wsStream) Recv(ctx context.Context) (*Frame, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	readDone := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			_ = s.conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	var f Frame
	err := s.conn.ReadJSON(&f)
	close(readDone)
	<-watchDone
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	metrics.RecordFrame(f.Command)
	return &f, nil
}

// Close releases the stream. Safe to call more than once.
func (s *wsStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.owner.forget(s)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *wsStream) checkClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
