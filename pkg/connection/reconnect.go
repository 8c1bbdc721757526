package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrLoopRunning is returned by Run when the loop is already running.
var ErrLoopRunning = errors.New("retry loop already running")

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an established session.
	StateConnected

	// StateReconnecting indicates the loop is waiting before the next attempt.
	StateReconnecting

	// StateClosed indicates the loop has stopped.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SessionFunc runs one session until it ends. It calls established once
// the session is usable (connected and logged in); the loop then reports
// StateConnected and resets the backoff.
type SessionFunc func(ctx context.Context, established func()) error

// LoopConfig configures a Loop.
type LoopConfig struct {
	// Backoff computes delays between attempts (default fixed 5s).
	Backoff *Backoff

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger

	// OnStateChange is called on every state transition.
	OnStateChange func(oldState, newState State)

	// OnReconnecting is called before each wait with the error that ended
	// the previous attempt.
	OnReconnecting func(attempt int, delay time.Duration, err error)
}

// Loop runs a session repeatedly until its context ends. Retries are
// unbounded.
type Loop struct {
	session SessionFunc
	config  LoopConfig
	backoff *Backoff
	logger  *slog.Logger

	mu      sync.RWMutex
	state   State
	running bool
}

// NewLoop creates a retry loop for session.
func NewLoop(session SessionFunc, cfg LoopConfig) *Loop {
	if cfg.Backoff == nil {
		cfg.Backoff = NewFixedBackoff(DefaultRetryDelay)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		session: session,
		config:  cfg,
		backoff: cfg.Backoff,
		logger:  cfg.Logger.With("target", "connection"),
		state:   StateDisconnected,
	}
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsConnected returns true while a session is established.
func (l *Loop) IsConnected() bool {
	return l.State() == StateConnected
}

// Attempts returns the number of failed attempts since the last
// established session.
func (l *Loop) Attempts() int {
	return l.backoff.Attempts()
}

// Run runs sessions until ctx ends and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.setState(StateClosed)
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.setState(StateConnecting)
		err := l.session(ctx, l.established)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := l.backoff.Next()
		attempt := l.backoff.Attempts()
		l.setState(StateReconnecting)
		l.logger.Info("session ended, retrying", "error", err, "attempt", attempt, "delay", delay)
		if l.config.OnReconnecting != nil {
			l.config.OnReconnecting(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) established() {
	l.backoff.Reset()
	l.setState(StateConnected)
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	old := l.state
	if old == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()

	l.logger.Debug("state changed", "from", old, "to", s)
	if l.config.OnStateChange != nil {
		l.config.OnStateChange(old, s)
	}
}
