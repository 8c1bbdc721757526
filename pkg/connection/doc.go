// Package connection provides the session retry loop of the agent.
//
// # Retry Strategy
//
// A session (dial, login, serve) runs until it fails. The loop then waits
// and starts a new session, forever, until its context is cancelled:
//
//  1. Fixed delay: 5 seconds between attempts
//  2. Login failures are retried the same way as transport failures
//  3. The backoff is reset whenever a session gets established
//
// Exponential growth with jitter is available through BackoffConfig:
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
//
// # States
//
//	DISCONNECTED -> CONNECTING -> CONNECTED -> RECONNECTING -> CONNECTING ...
//
// CLOSED is reported once Run returns.
package connection
