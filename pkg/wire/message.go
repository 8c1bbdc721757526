package wire

import (
	"errors"
	"fmt"
	"log/slog"
)

// Message errors.
var (
	// ErrNotRequest indicates an operation that needs a request got something else.
	ErrNotRequest = errors.New("not a request")

	// ErrRequestIDMissing indicates a request without a request id.
	ErrRequestIDMissing = errors.New("request id missing")
)

// NoRequestID is the zero request id. Signals carry it; requests and
// responses never do.
const NoRequestID int64 = 0

// Kind distinguishes requests, responses and signals.
type Kind uint8

const (
	// KindRequest is a method call expecting a response.
	KindRequest Kind = 1

	// KindResponse answers a request with a result or an error.
	KindResponse Kind = 2

	// KindSignal is an unsolicited notification (no request id).
	KindSignal Kind = 3
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindSignal:
		return "SIGNAL"
	default:
		return "UNKNOWN"
	}
}

// Message is one RPC message.
//
// CBOR encoding:
//
//	{
//	  1: kind,         // uint8: 1=request, 2=response, 3=signal
//	  2: requestId,    // int64, absent for signals
//	  3: path,         // slash-delimited node path
//	  4: method,       // method name (requests, signals)
//	  5: params,       // any
//	  6: result,       // any (responses)
//	  7: error,        // {1: code, 2: message} (responses)
//	  8: accessGrant,  // opaque access grant assigned by the broker
//	  9: callerIds     // broker routing ids, echoed in responses
//	}
//
// Messages published to several subscribers are shared and must be
// treated as read-only.
type Message struct {
	Kind        Kind      `cbor:"1,keyasint" json:"kind"`
	RequestID   int64     `cbor:"2,keyasint,omitempty" json:"requestId,omitempty"`
	Path        string    `cbor:"3,keyasint,omitempty" json:"path,omitempty"`
	Method      string    `cbor:"4,keyasint,omitempty" json:"method,omitempty"`
	Params      any       `cbor:"5,keyasint,omitempty" json:"params,omitempty"`
	Result      any       `cbor:"6,keyasint,omitempty" json:"result,omitempty"`
	Error       *RPCError `cbor:"7,keyasint,omitempty" json:"error,omitempty"`
	AccessGrant string    `cbor:"8,keyasint,omitempty" json:"accessGrant,omitempty"`
	CallerIDs   []int64   `cbor:"9,keyasint,omitempty" json:"callerIds,omitempty"`
}

// NewRequest creates a request message.
func NewRequest(requestID int64, path, method string, params any) *Message {
	return &Message{
		Kind:      KindRequest,
		RequestID: requestID,
		Path:      path,
		Method:    method,
		Params:    params,
	}
}

// NewSignal creates a signal message.
func NewSignal(path, method string, params any) *Message {
	return &Message{
		Kind:   KindSignal,
		Path:   path,
		Method: method,
		Params: params,
	}
}

// IsRequest reports whether m is a request.
func (m *Message) IsRequest() bool {
	return m.Kind == KindRequest
}

// IsResponse reports whether m is a response.
func (m *Message) IsResponse() bool {
	return m.Kind == KindResponse
}

// IsSignal reports whether m is a signal.
func (m *Message) IsSignal() bool {
	return m.Kind == KindSignal
}

// HasRequestID reports whether m carries a request id.
func (m *Message) HasRequestID() bool {
	return m.RequestID != NoRequestID
}

// HasResult reports whether m carries a result value.
func (m *Message) HasResult() bool {
	return m.Result != nil
}

// PrepareResponse creates an empty response addressed to the sender of m.
func (m *Message) PrepareResponse() (*Message, error) {
	if !m.IsRequest() {
		return nil, ErrNotRequest
	}
	if !m.HasRequestID() {
		return nil, ErrRequestIDMissing
	}
	resp := &Message{
		Kind:      KindResponse,
		RequestID: m.RequestID,
	}
	if len(m.CallerIDs) > 0 {
		resp.CallerIDs = append([]int64(nil), m.CallerIDs...)
	}
	return resp, nil
}

// SetResult sets the result and clears any error.
func (m *Message) SetResult(result any) {
	m.Result = result
	m.Error = nil
}

// SetError sets the error and clears any result.
func (m *Message) SetError(err *RPCError) {
	m.Error = err
	m.Result = nil
}

// String returns a short human-readable rendering for logs.
func (m *Message) String() string {
	switch m.Kind {
	case KindRequest:
		return fmt.Sprintf("RQ#%d %s:%s %v", m.RequestID, m.Path, m.Method, m.Params)
	case KindResponse:
		if m.Error != nil {
			return fmt.Sprintf("RS#%d error: %s", m.RequestID, m.Error)
		}
		return fmt.Sprintf("RS#%d result: %v", m.RequestID, m.Result)
	case KindSignal:
		return fmt.Sprintf("SIG %s:%s %v", m.Path, m.Method, m.Params)
	default:
		return fmt.Sprintf("?#%d", m.RequestID)
	}
}

// LogValue renders the message only when a handler actually emits it.
func (m *Message) LogValue() slog.Value {
	return slog.StringValue(m.String())
}

var _ slog.LogValuer = (*Message)(nil)
