package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shv-protocol/shv-go/pkg/log"
)

// Schemes understood by Dial.
const (
	SchemeTCP = "tcp"
	SchemeSSL = "ssl"
	SchemeWS  = "ws"
	SchemeWSS = "wss"
)

// DefaultScheme is used when DialConfig.Scheme is empty.
const DefaultScheme = SchemeTCP

// DefaultConnectTimeout bounds dialing when the context has no deadline.
const DefaultConnectTimeout = 30 * time.Second

// ErrUnknownScheme indicates a scheme with no registered dialer.
var ErrUnknownScheme = errors.New("unknown transport scheme")

// DialConfig describes how to reach a broker.
type DialConfig struct {
	// Scheme selects the transport: tcp (default), ssl, ws or wss.
	Scheme string

	// Host is the broker host name or address.
	Host string

	// Port is the broker port; zero selects the scheme default.
	Port int

	// Path is the HTTP path for websocket schemes.
	Path string

	// TLS configures ssl and wss. Nil verifies against the system pool.
	TLS *TLSConfig

	// ConnectTimeout bounds dialing (default 30s).
	ConnectTimeout time.Duration

	// MaxMessageSize is the maximum frame payload (default 16 MiB).
	MaxMessageSize uint32

	// ProtocolLogger receives frame events. Optional.
	ProtocolLogger log.Logger

	// ConnID tags frame events.
	ConnID string
}

// Address returns host:port with the scheme default port applied.
func (c DialConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort(c.scheme())
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c DialConfig) scheme() string {
	if c.Scheme == "" {
		return DefaultScheme
	}
	return c.Scheme
}

// DefaultPort returns the conventional broker port for a scheme.
func DefaultPort(scheme string) int {
	switch scheme {
	case SchemeSSL:
		return 3756
	case SchemeWS:
		return 3777
	case SchemeWSS:
		return 3778
	default:
		return 3755
	}
}

type dialFunc func(ctx context.Context, cfg DialConfig) (FrameConn, error)

var (
	dialersMu sync.RWMutex
	dialers   = map[string]dialFunc{
		SchemeTCP: dialTCP,
		SchemeSSL: dialSSL,
		SchemeWS:  dialWS,
		SchemeWSS: dialWS,
	}
)

// RegisterScheme installs a dialer for scheme, replacing any existing one.
func RegisterScheme(scheme string, dial func(ctx context.Context, cfg DialConfig) (FrameConn, error)) {
	dialersMu.Lock()
	defer dialersMu.Unlock()
	dialers[scheme] = dial
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	dialersMu.RLock()
	defer dialersMu.RUnlock()
	out := make([]string, 0, len(dialers))
	for name := range dialers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dial connects to the broker described by cfg.
func Dial(ctx context.Context, cfg DialConfig) (FrameConn, error) {
	scheme := cfg.scheme()
	dialersMu.RLock()
	dial, ok := dialers[scheme]
	dialersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}

	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	return dial(ctx, cfg)
}

func dialTCP(ctx context.Context, cfg DialConfig) (FrameConn, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return newStreamConn(conn, cfg), nil
}

func dialSSL(ctx context.Context, cfg DialConfig) (FrameConn, error) {
	tlsConf, err := NewClientTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = cfg.Host
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return newStreamConn(tlsConn, cfg), nil
}

// StreamConn frames messages over a byte stream with a length prefix.
type StreamConn struct {
	conn   net.Conn
	framer *Framer
}

// NewStreamConn wraps an established stream connection.
func NewStreamConn(conn net.Conn) *StreamConn {
	return newStreamConn(conn, DialConfig{MaxMessageSize: DefaultMaxMessageSize})
}

func newStreamConn(conn net.Conn, cfg DialConfig) *StreamConn {
	framer := NewFramerWithMaxSize(conn, cfg.MaxMessageSize)
	if cfg.ProtocolLogger != nil {
		framer.SetLogger(cfg.ProtocolLogger, cfg.ConnID)
	}
	return &StreamConn{conn: conn, framer: framer}
}

// ReadFrame reads the next frame payload.
func (c *StreamConn) ReadFrame() ([]byte, error) {
	return c.framer.ReadFrame()
}

// WriteFrame writes one frame payload.
func (c *StreamConn) WriteFrame(data []byte) error {
	return c.framer.WriteFrame(data)
}

// RemoteAddr returns the peer address.
func (c *StreamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close closes the underlying connection.
func (c *StreamConn) Close() error {
	return c.conn.Close()
}
