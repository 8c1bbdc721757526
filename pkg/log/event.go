package log

import (
	"time"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the broker connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the broker address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the device id announced at login.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	Heartbeat   *HeartbeatEvent   `cbor:"13,keyasint,omitempty"` // Ping supervision
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded messages).
	LayerWire Layer = 1
	// LayerSession is the login/heartbeat/dispatch layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/signal).
	CategoryMessage Category = 0
	// CategoryHeartbeat indicates a heartbeat ping outcome.
	CategoryHeartbeat Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded RPC message at the wire layer.
type MessageEvent struct {
	// Kind distinguishes request/response/signal.
	Kind wire.Kind `cbor:"1,keyasint"`

	// RequestID correlates request/response pairs (0 for signals).
	RequestID int64 `cbor:"2,keyasint,omitempty"`

	// Path is the node path of requests and signals.
	Path string `cbor:"3,keyasint,omitempty"`

	// Method is the method name of requests and signals.
	Method string `cbor:"4,keyasint,omitempty"`

	// ErrorCode is set for error responses.
	ErrorCode *wire.ErrorCode `cbor:"5,keyasint,omitempty"`

	// Payload is the params or result value.
	Payload any `cbor:"6,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response send (response only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"7,keyasint,omitempty"`
}

// NewMessageEvent summarizes msg for logging.
func NewMessageEvent(msg *wire.Message) *MessageEvent {
	ev := &MessageEvent{
		Kind:      msg.Kind,
		RequestID: msg.RequestID,
		Path:      msg.Path,
		Method:    msg.Method,
	}
	switch {
	case msg.Error != nil:
		code := msg.Error.Code
		ev.ErrorCode = &code
	case msg.IsResponse():
		ev.Payload = msg.Result
	default:
		ev.Payload = msg.Params
	}
	return ev
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change (login).
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatEvent captures the outcome of one heartbeat ping.
type HeartbeatEvent struct {
	// Outcome of the ping.
	Outcome HeartbeatOutcome `cbor:"1,keyasint"`

	// RequestID of the ping request.
	RequestID int64 `cbor:"2,keyasint,omitempty"`

	// Latency is the round trip time of answered pings.
	Latency *time.Duration `cbor:"3,keyasint,omitempty"`
}

// HeartbeatOutcome is the result of a heartbeat ping.
type HeartbeatOutcome uint8

const (
	// HeartbeatSent indicates a ping was written.
	HeartbeatSent HeartbeatOutcome = 0
	// HeartbeatAnswered indicates the broker responded.
	HeartbeatAnswered HeartbeatOutcome = 1
	// HeartbeatMissed indicates the wait was abandoned.
	HeartbeatMissed HeartbeatOutcome = 2
)

// String returns the outcome name.
func (h HeartbeatOutcome) String() string {
	switch h {
	case HeartbeatSent:
		return "SENT"
	case HeartbeatAnswered:
		return "ANSWERED"
	case HeartbeatMissed:
		return "MISSED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
