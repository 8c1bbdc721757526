package transport

import "github.com/shv-protocol/shv-go/pkg/wire"

// FrameConn carries whole frame payloads over one broker connection.
// Implemented by StreamConn (tcp, ssl) and WSConn (ws, wss).
type FrameConn interface {
	// ReadFrame reads the next frame payload. Only one goroutine reads.
	ReadFrame() ([]byte, error)

	// WriteFrame writes one frame payload. Safe for concurrent use.
	WriteFrame(data []byte) error

	// RemoteAddr returns the peer address for logs.
	RemoteAddr() string

	// Close closes the connection, unblocking a pending ReadFrame.
	Close() error
}

// MessageSender sends encoded messages to the broker.
// Implemented by Conn.
type MessageSender interface {
	// Send encodes and writes msg.
	Send(msg *wire.Message) error
}

// MessageSource hands out subscriptions to the inbound message stream.
// Implemented by Conn and Broadcaster.
type MessageSource interface {
	// Subscribe registers a new subscriber.
	Subscribe() *Subscription
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ FrameConn       = (*StreamConn)(nil)
	_ FrameConn       = (*WSConn)(nil)
	_ FrameReadWriter = (*Framer)(nil)
	_ MessageSender   = (*Conn)(nil)
	_ MessageSource   = (*Conn)(nil)
	_ MessageSource   = (*Broadcaster)(nil)
)
