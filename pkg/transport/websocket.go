package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shv-protocol/shv-go/pkg/log"
)

// wsCloseTimeout bounds the close handshake write.
const wsCloseTimeout = time.Second

func dialWS(ctx context.Context, cfg DialConfig) (FrameConn, error) {
	u := url.URL{
		Scheme: cfg.scheme(),
		Host:   cfg.Address(),
		Path:   cfg.Path,
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
		HandshakeTimeout: cfg.ConnectTimeout,
	}
	if u.Scheme == SchemeWSS {
		tlsConf, err := NewClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsConf
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return NewWSConn(conn, cfg.MaxMessageSize, cfg.ProtocolLogger, cfg.ConnID), nil
}

// WSConn carries one frame payload per binary websocket message.
type WSConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	log     frameLog
}

// NewWSConn wraps an established websocket connection. logger may be nil.
func NewWSConn(conn *websocket.Conn, maxSize uint32, logger log.Logger, connID string) *WSConn {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	conn.SetReadLimit(int64(maxSize))
	return &WSConn{
		conn: conn,
		log:  frameLog{logger: logger, connID: connID},
	}
}

// ReadFrame reads the next websocket message as a frame payload.
// A normal close from the peer is reported as io.EOF.
func (c *WSConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, fmt.Errorf("%w: %v", ErrMessageTooLarge, err)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrMessageEmpty
	}
	c.log.record(data, log.DirectionIn)
	return data, nil
}

// WriteFrame sends data as one binary message.
func (c *WSConn) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.log.record(data, log.DirectionOut)
	return nil
}

// RemoteAddr returns the peer address.
func (c *WSConn) RemoteAddr() string {
	var addr net.Addr = c.conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Close sends a close message and closes the connection. WriteControl may
// run concurrently with WriteFrame.
func (c *WSConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
	return c.conn.Close()
}
