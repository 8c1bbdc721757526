package client

import (
	"fmt"
	"time"
)

// CallTimeoutError reports a call that got no matching response in time.
type CallTimeoutError struct {
	RequestID int64
	Timeout   time.Duration
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("response to request id %d didn't arrive within %v", e.RequestID, e.Timeout)
}

// AuthError reports a rejected login.
type AuthError struct {
	// Reason is the broker's error message, if it sent one.
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "login incorrect"
	}
	return "login incorrect: " + e.Reason
}
