package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shv-protocol/shv-go/pkg/transport"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// DefaultCallTimeout bounds the wait for a response.
const DefaultCallTimeout = 5 * time.Second

// Conn is the broker connection a Client issues calls over.
// Implemented by transport.Conn.
type Conn interface {
	// Send encodes and writes msg.
	Send(msg *wire.Message) error

	// Subscribe registers a subscriber for every inbound message.
	Subscribe() *transport.Subscription

	// Done is closed when the connection ends.
	Done() <-chan struct{}
}

// Config configures a Client.
type Config struct {
	// Timeout bounds each call (default 5s).
	Timeout time.Duration

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger
}

// Client correlates requests with responses over a shared connection.
// Any number of calls may be in flight at once; each waiter sees every
// inbound message and claims only the response carrying its request id.
type Client struct {
	conn   Conn
	logger *slog.Logger

	mu      sync.RWMutex
	timeout time.Duration

	lastID atomic.Int64
}

// New creates a client bound to conn.
func New(conn Conn, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		conn:    conn,
		logger:  cfg.Logger.With("target", "client"),
		timeout: cfg.Timeout,
	}
}

// SetTimeout sets the call timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Timeout returns the call timeout.
func (c *Client) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

// Conn returns the underlying connection.
func (c *Client) Conn() Conn {
	return c.conn
}

// NextRequestID returns a fresh request id, unique per client.
func (c *Client) NextRequestID() int64 {
	return c.lastID.Add(1)
}

// NewRequest creates a request with a fresh request id.
func (c *Client) NewRequest(path, method string, params any) *wire.Message {
	return wire.NewRequest(c.NextRequestID(), path, method, params)
}

// Send writes msg without waiting for anything.
func (c *Client) Send(msg *wire.Message) error {
	return c.conn.Send(msg)
}

// Call sends rq and waits for the response carrying the same request id.
// It fails with *CallTimeoutError when none arrives within the timeout,
// with ctx.Err() when ctx ends first, and with
// transport.ErrConnectionClosed when the connection goes away.
func (c *Client) Call(ctx context.Context, rq *wire.Message) (*wire.Message, error) {
	if !rq.IsRequest() {
		return nil, wire.ErrNotRequest
	}
	if !rq.HasRequestID() {
		return nil, wire.ErrRequestIDMissing
	}
	id := rq.RequestID
	timeout := c.Timeout()

	// Subscribe first so a fast response cannot slip past.
	sub := c.conn.Subscribe()
	defer sub.Unsubscribe()

	if err := c.conn.Send(rq); err != nil {
		return nil, fmt.Errorf("send request %d: %w", id, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, &CallTimeoutError{RequestID: id, Timeout: timeout}
		case m, ok := <-sub.C():
			if !ok {
				return nil, transport.ErrConnectionClosed
			}
			if m.IsResponse() && m.RequestID == id {
				return m, nil
			}
		}
	}
}

// CallMethod calls path:method and returns the result. An error response
// is returned as *wire.RPCError.
func (c *Client) CallMethod(ctx context.Context, path, method string, params any) (any, error) {
	resp, err := c.Call(ctx, c.NewRequest(path, method, params))
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
