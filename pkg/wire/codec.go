package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformedFrame indicates a frame that cannot be decoded into a message.
var ErrMalformedFrame = errors.New("malformed frame")

// Protocol is the wire encoding tag carried as the first byte of every frame.
type Protocol uint8

const (
	// ProtocolCBOR encodes messages as CBOR with integer keys.
	ProtocolCBOR Protocol = 1

	// ProtocolJSON encodes messages as JSON, mostly for debugging.
	ProtocolJSON Protocol = 2
)

// DefaultProtocol is used when nothing else is configured.
const DefaultProtocol = ProtocolCBOR

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolCBOR:
		return "cbor"
	case ProtocolJSON:
		return "json"
	default:
		return "unknown"
	}
}

// IsValid reports whether p is a known protocol.
func (p Protocol) IsValid() bool {
	return p == ProtocolCBOR || p == ProtocolJSON
}

// ParseProtocol parses a protocol name as used in configuration.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "", "cbor":
		return ProtocolCBOR, nil
	case "json":
		return ProtocolJSON, nil
	default:
		return 0, fmt.Errorf("unknown wire protocol %q", s)
	}
}

// encMode is the CBOR encoder mode for messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility; integers decoded into `any`
	// become int64 so both codecs yield the same shapes.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		IntDec:            cbor.IntDecConvertSigned,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeMessage encodes msg using proto, without the protocol byte.
func EncodeMessage(proto Protocol, msg *Message) ([]byte, error) {
	switch proto {
	case ProtocolCBOR:
		return Marshal(msg)
	case ProtocolJSON:
		return json.Marshal(jsonSafe(msg))
	default:
		return nil, fmt.Errorf("unsupported protocol: %d", proto)
	}
}

// DecodeMessage decodes data encoded with proto.
func DecodeMessage(proto Protocol, data []byte) (*Message, error) {
	var msg Message
	switch proto {
	case ProtocolCBOR:
		if err := Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	case ProtocolJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown protocol %d", ErrMalformedFrame, proto)
	}
	if err := msg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &msg, nil
}

// EncodeFrame encodes msg into a frame payload: the protocol byte
// followed by the encoded message.
func EncodeFrame(proto Protocol, msg *Message) ([]byte, error) {
	body, err := EncodeMessage(proto, msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, byte(proto))
	return append(frame, body...), nil
}

// DecodeFrame decodes a frame payload produced by EncodeFrame.
func DecodeFrame(data []byte) (*Message, Protocol, error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedFrame, len(data))
	}
	proto := Protocol(data[0])
	msg, err := DecodeMessage(proto, data[1:])
	if err != nil {
		return nil, proto, err
	}
	return msg, proto, nil
}

// validate checks the structural invariants of a decoded message.
func (m *Message) validate() error {
	switch m.Kind {
	case KindRequest:
		// A missing method is answered by the router with an error response.
	case KindResponse:
		if !m.HasRequestID() {
			return ErrRequestIDMissing
		}
	case KindSignal:
		if m.Method == "" {
			return errors.New("signal without method")
		}
	default:
		return fmt.Errorf("invalid message kind: %d", m.Kind)
	}
	return nil
}

// jsonSafe returns a copy of msg whose values can be marshaled by
// encoding/json (CBOR-decoded maps may have non-string keys).
func jsonSafe(msg *Message) *Message {
	out := *msg
	out.Params = Normalize(msg.Params)
	out.Result = Normalize(msg.Result)
	return &out
}
