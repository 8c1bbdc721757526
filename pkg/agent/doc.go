// Package agent runs a device agent against a broker.
//
// A session dials the broker, starts the connection pump, logs in, starts
// the heartbeat and then serves inbound requests through a node tree:
//
//	dial -> Conn.Run ─┐
//	        Login -> Heartbeat -> serve (HandleRequest per request)
//
// The pump and the serving goroutine share an errgroup, so the first one
// to fail ends the session. The agent then waits RetryDelay and starts a
// new session. Login failures are retried the same way.
package agent
