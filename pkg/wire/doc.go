// Package wire defines the message model and frame codec of the SHV RPC
// protocol as spoken by this agent.
//
// # Message Kinds
//
// There are three message kinds:
//   - Request: a method call on a node path, carrying a request id
//   - Response: the result or error for a request id
//   - Signal: an unsolicited notification without a request id
//
// # Frames
//
// A frame payload is one protocol byte followed by the encoded message.
// CBOR (integer keys, canonical ordering) is the default encoding; JSON is
// available for debugging. The transport layer adds the length prefix.
//
// # Decoded Values
//
// Params and results are untyped. Use AsInt, AsString, AsList, AsMap and
// AsBytes to read them independently of the codec that produced them.
package wire
