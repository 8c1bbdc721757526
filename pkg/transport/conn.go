package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shv-protocol/shv-go/pkg/log"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Connection errors.
var (
	// ErrConnectionClosed indicates the connection is gone.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("connection already running")
)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// ID identifies the connection in logs. Empty generates a UUID.
	ID string

	// Protocol is the wire encoding for outgoing messages.
	Protocol wire.Protocol

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives decoded message events. Optional.
	ProtocolLogger log.Logger
}

// Conn owns one broker connection: a single goroutine (Run) reads and
// decodes frames and publishes each message to every subscriber, while
// Send may be called from any goroutine.
type Conn struct {
	id     string
	fc     FrameConn
	proto  wire.Protocol
	logger *slog.Logger
	plog   log.Logger
	bc     *Broadcaster

	runOnce   sync.Once
	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// NewConn wraps fc. Call Run to start receiving.
func NewConn(fc FrameConn, cfg ConnConfig) *Conn {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if !cfg.Protocol.IsValid() {
		cfg.Protocol = wire.DefaultProtocol
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Conn{
		id:     cfg.ID,
		fc:     fc,
		proto:  cfg.Protocol,
		logger: cfg.Logger.With("target", "rpcmsg", "conn_id", cfg.ID),
		plog:   cfg.ProtocolLogger,
		bc:     NewBroadcaster(),
		done:   make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the broker address.
func (c *Conn) RemoteAddr() string {
	return c.fc.RemoteAddr()
}

// Protocol returns the wire encoding used for outgoing messages.
func (c *Conn) Protocol() wire.Protocol {
	return c.proto
}

// Subscribe registers a subscriber for inbound messages. Subscribers see
// every message received after the call; the channel closes when the
// connection ends.
func (c *Conn) Subscribe() *Subscription {
	return c.bc.Subscribe()
}

// Run reads frames until the connection fails, ctx is cancelled or Close
// is called. Malformed frames are logged and dropped. Run returns the
// terminal error: ctx.Err() on cancellation, nil after Close, otherwise
// the read error (io.EOF when the broker hung up).
func (c *Conn) Run(ctx context.Context) error {
	first := false
	c.runOnce.Do(func() { first = true })
	if !first {
		return ErrAlreadyRunning
	}

	stop := context.AfterFunc(ctx, func() { c.fc.Close() })
	defer stop()
	defer c.bc.Close()

	for {
		data, err := c.fc.ReadFrame()
		if errors.Is(err, ErrMessageEmpty) {
			// The stream is still in sync after an empty frame.
			c.logger.Warn("dropping empty frame")
			continue
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				err = ctx.Err()
			case c.isClosed():
				err = nil
			}
			c.finish(err)
			return err
		}

		msg, proto, err := wire.DecodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "size", len(data), "error", err)
			c.logEvent(log.DirectionIn, nil, err)
			continue
		}
		if proto != c.proto {
			c.logger.Debug("frame protocol differs from configured", "got", proto, "want", c.proto)
		}

		c.logger.Debug("<==", "message", msg)
		c.logEvent(log.DirectionIn, msg, nil)
		c.bc.Publish(msg)
	}
}

// Send encodes msg with the connection protocol and writes it.
func (c *Conn) Send(msg *wire.Message) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}

	data, err := wire.EncodeFrame(c.proto, msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := c.fc.WriteFrame(data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}

	c.logger.Debug("==>", "message", msg)
	c.logEvent(log.DirectionOut, msg, nil)
	return nil
}

// Close closes the connection; Run returns shortly after.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.fc.Close()
	})
	return err
}

// Done is closed once Close was called or Run has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error recorded by Run, or nil.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) finish(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		c.logger.Warn("connection read failed", "error", err)
	}
	c.closeOnce.Do(func() {
		close(c.done)
		c.fc.Close()
	})
}

func (c *Conn) logEvent(dir log.Direction, msg *wire.Message, decodeErr error) {
	if c.plog == nil {
		return
	}
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.fc.RemoteAddr(),
	}
	if decodeErr != nil {
		ev.Category = log.CategoryError
		ev.Error = &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: decodeErr.Error(),
			Context: "decode frame",
		}
	} else {
		ev.Message = log.NewMessageEvent(msg)
	}
	c.plog.Log(ev)
}
