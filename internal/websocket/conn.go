package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
)

const defaultAckTimeout = 10 * time.Second

var ErrConnClosed = errors.New("push channel closed")

// Conn is the client end of the push channel: one connection per session,
// room joins acknowledged by the server, new-message events fanned out to
// subscribers in arrival order.
type Conn struct {
	ws         *fastws.Conn
	write      func([]byte) error
	logger     *zap.Logger
	ackTimeout time.Duration

	writeMu sync.Mutex

	mu          sync.Mutex
	handlers    map[uint64]func(models.Message)
	nextHandler uint64
	pending     map[string]chan Ack

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

type DialOption func(*dialOptions)

type dialOptions struct {
	logger           *zap.Logger
	ackTimeout       time.Duration
	handshakeTimeout time.Duration
}

func WithDialLogger(logger *zap.Logger) DialOption {
	return func(o *dialOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithAckTimeout(timeout time.Duration) DialOption {
	return func(o *dialOptions) {
		if timeout > 0 {
			o.ackTimeout = timeout
		}
	}
}

func WithHandshakeTimeout(timeout time.Duration) DialOption {
	return func(o *dialOptions) {
		if timeout > 0 {
			o.handshakeTimeout = timeout
		}
	}
}

// PushURL derives the push endpoint from the API base URL.
func PushURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial opens the push channel for the session owning token.
func Dial(ctx context.Context, serverURL, token string, opts ...DialOption) (*Conn, error) {
	options := dialOptions{
		logger:           zap.NewNop(),
		ackTimeout:       defaultAckTimeout,
		handshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	target, err := PushURL(serverURL, token)
	if err != nil {
		return nil, err
	}

	dialer := &fastws.Dialer{HandshakeTimeout: options.handshakeTimeout}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial push channel: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial push channel: %w", err)
	}

	c := newConn(options.logger, options.ackTimeout)
	c.ws = ws
	c.write = func(frame []byte) error {
		return ws.WriteMessage(fastws.TextMessage, frame)
	}
	go c.readLoop()
	return c, nil
}

func newConn(logger *zap.Logger, ackTimeout time.Duration) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}
	return &Conn{
		logger:     logger,
		ackTimeout: ackTimeout,
		handlers:   make(map[uint64]func(models.Message)),
		pending:    make(map[string]chan Ack),
		done:       make(chan struct{}),
	}
}

// Subscribe registers handler for new-message events. Handlers run on the
// read goroutine, one event at a time.
func (c *Conn) Subscribe(handler func(models.Message)) func() {
	c.mu.Lock()
	id := c.nextHandler
	c.nextHandler++
	c.handlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Join enters the room scoped to peerID and waits for the server's ack.
func (c *Conn) Join(ctx context.Context, peerID string) error {
	ackID := uuid.NewString()
	result := make(chan Ack, 1)

	c.mu.Lock()
	c.pending[ackID] = result
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ackID)
		c.mu.Unlock()
	}()

	if err := c.send(EventJoinConversation, ackID, RoomRequest{PeerID: peerID}); err != nil {
		return err
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-result:
		if !ack.OK {
			if ack.Error == "" {
				ack.Error = "rejected"
			}
			return fmt.Errorf("join conversation %s: %s", peerID, ack.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("join conversation %s: ack timeout after %s", peerID, c.ackTimeout)
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave exits the room for peerID without waiting for an ack.
func (c *Conn) Leave(_ context.Context, peerID string) error {
	return c.send(EventLeaveConversation, "", RoomRequest{PeerID: peerID})
}

func (c *Conn) send(event, ack string, data any) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	frame, err := encodeEnvelope(event, ack, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.write == nil {
		return ErrConnClosed
	}
	if err := c.write(frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.dispatch(payload)
	}
}

func (c *Conn) dispatch(payload []byte) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		c.logger.Warn("invalid push frame", zap.Error(err))
		return
	}

	switch envelope.Event {
	case EventAck:
		var ack Ack
		if err := json.Unmarshal(envelope.Data, &ack); err != nil {
			ack = Ack{OK: false, Error: "malformed ack"}
		}
		c.mu.Lock()
		waiter, ok := c.pending[envelope.Ack]
		c.mu.Unlock()
		if ok {
			select {
			case waiter <- ack:
			default:
			}
		}
	case EventNewMessage:
		var message models.Message
		if err := json.Unmarshal(envelope.Data, &message); err != nil {
			c.logger.Warn("invalid new-message payload", zap.Error(err))
			return
		}
		for _, handler := range c.snapshotHandlers() {
			handler(message)
		}
	case EventError:
		var body errorPayload
		_ = json.Unmarshal(envelope.Data, &body)
		c.logger.Warn("push channel error", zap.String("error", body.Error))
	default:
		c.logger.Debug("ignored push event", zap.String("event", envelope.Event))
	}
}

func (c *Conn) snapshotHandlers() []func(models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(models.Message), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.handlers[id])
	}
	return handlers
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Conn) Close() error {
	c.shutdown(ErrConnClosed)
	if c.ws == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		fastws.CloseMessage,
		fastws.FormatCloseMessage(fastws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.ws.Close()
}
