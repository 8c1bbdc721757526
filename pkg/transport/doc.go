// Package transport carries RPC messages between the agent and its broker.
//
// The transport layer handles:
//   - Dialing the broker over tcp, ssl, ws or wss (see Dial)
//   - Length-prefixed framing on byte streams, one message per websocket frame
//   - A per-connection receive pump that decodes every frame once
//   - Fan-out of inbound messages to all interested subscribers
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Messages (CBOR or JSON)      │
//	├────────────────────────────────┤
//	│   Protocol byte + payload      │
//	├────────────────────────────────┤
//	│ Length prefix (4B) │ WebSocket │
//	├────────────────────────────────┤
//	│       TCP / TLS                │
//	└────────────────────────────────┘
//
// # Fan-out
//
// Conn.Run owns the read side. Each decoded message is published to every
// Subscription: in-flight calls, the heartbeat and the request dispatcher
// all observe the same stream and pick what concerns them. Delivery is
// in order per subscriber. A subscriber that stops reading stalls the
// pump until it unsubscribes, so waiters must always unsubscribe when
// they are done.
package transport
