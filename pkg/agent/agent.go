package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shv-protocol/shv-go/pkg/client"
	"github.com/shv-protocol/shv-go/pkg/connection"
	"github.com/shv-protocol/shv-go/pkg/log"
	"github.com/shv-protocol/shv-go/pkg/shvnode"
	"github.com/shv-protocol/shv-go/pkg/transport"
)

// Configuration errors.
var (
	ErrNoParams = errors.New("connection params required")
	ErrNoTree   = errors.New("node tree required")
)

// DialFunc opens the frame connection for a session.
type DialFunc func(ctx context.Context, cfg transport.DialConfig) (transport.FrameConn, error)

// Config configures an Agent.
type Config struct {
	// Params describe the broker and the login.
	Params *client.ConnectionParams

	// Tree serves inbound requests. It must not change once Run starts.
	Tree *shvnode.NodesTree

	// CallTimeout bounds outgoing calls, login included (default 5s).
	CallTimeout time.Duration

	// RetryDelay is the delay between sessions (default 5s).
	RetryDelay time.Duration

	// MaxRetryDelay, when above RetryDelay, doubles the delay after each
	// failed attempt up to this cap. Zero keeps the delay fixed.
	MaxRetryDelay time.Duration

	// Dial opens connections (default transport.Dial).
	Dial DialFunc

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger captures protocol events. Optional.
	ProtocolLogger log.Logger

	// OnStateChange is called on connection state transitions. Optional.
	OnStateChange func(oldState, newState connection.State)
}

// Agent keeps a logged-in session with the broker and serves the node
// tree over it. Failed sessions are retried forever.
type Agent struct {
	config Config
	logger *slog.Logger
	loop   *connection.Loop

	mu     sync.RWMutex
	client *client.Client
	connID string
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Params == nil {
		return nil, ErrNoParams
	}
	if cfg.Tree == nil {
		return nil, ErrNoTree
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = client.DefaultCallTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = connection.DefaultRetryDelay
	}
	if cfg.Dial == nil {
		cfg.Dial = transport.Dial
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Agent{
		config: cfg,
		logger: cfg.Logger.With("target", "agent"),
	}
	a.loop = connection.NewLoop(a.session, connection.LoopConfig{
		Backoff:       retryBackoff(cfg),
		Logger:        cfg.Logger,
		OnStateChange: a.stateChanged,
	})
	return a, nil
}

func retryBackoff(cfg Config) *connection.Backoff {
	if cfg.MaxRetryDelay <= cfg.RetryDelay {
		return connection.NewFixedBackoff(cfg.RetryDelay)
	}
	return connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial:    cfg.RetryDelay,
		Max:        cfg.MaxRetryDelay,
		Multiplier: connection.BackoffMultiplier,
		Jitter:     0.1,
	})
}

// Run keeps sessions going until ctx ends and returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// State returns the connection state.
func (a *Agent) State() connection.State {
	return a.loop.State()
}

// Client returns the client of the established session, or nil.
func (a *Agent) Client() *client.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *Agent) session(ctx context.Context, established func()) error {
	params := a.config.Params
	connID := uuid.New().String()
	a.mu.Lock()
	a.connID = connID
	a.mu.Unlock()

	dc := params.DialConfig()
	dc.ProtocolLogger = a.config.ProtocolLogger
	dc.ConnID = connID
	a.logger.Info("connecting", "address", dc.Address(), "scheme", dc.Scheme)

	fc, err := a.config.Dial(ctx, dc)
	if err != nil {
		return fmt.Errorf("connect %s: %w", dc.Address(), err)
	}
	conn := transport.NewConn(fc, transport.ConnConfig{
		ID:             connID,
		Protocol:       params.Protocol,
		Logger:         a.config.Logger,
		ProtocolLogger: a.config.ProtocolLogger,
	})
	defer conn.Close()
	a.logger.Info("connected", "address", conn.RemoteAddr(), "conn_id", connID)

	c := client.New(conn, client.Config{Timeout: a.config.CallTimeout, Logger: a.config.Logger})

	// Subscribe before login so requests sent right after the login
	// response are not missed. The serve goroutine owns the subscription
	// and drains it until the session ends.
	requests := conn.Subscribe()
	var loggedIn atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := conn.Run(gctx)
		if err == nil {
			err = transport.ErrConnectionClosed
		}
		return fmt.Errorf("connection: %w", err)
	})
	g.Go(func() error {
		defer requests.Unsubscribe()
		return a.serve(gctx, conn, requests, &loggedIn)
	})
	g.Go(func() error {
		if err := c.Login(gctx, params); err != nil {
			a.logger.Warn("login failed", "error", err)
			a.stateEvent(log.StateEntitySession, "", "LOGIN_FAILED", err.Error())
			return fmt.Errorf("login: %w", err)
		}
		a.logger.Info("logged in", "user", params.User, "device_id", params.DeviceID, "mount_point", params.MountPoint)
		a.stateEvent(log.StateEntitySession, "", "LOGGED_IN", "")

		a.setClient(c)
		defer a.setClient(nil)
		loggedIn.Store(true)
		established()

		if params.HeartbeatInterval > 0 {
			hb := client.NewHeartbeat(c, client.HeartbeatConfig{
				Interval:       params.HeartbeatInterval,
				Logger:         a.config.Logger,
				ProtocolLogger: a.config.ProtocolLogger,
				ConnID:         connID,
			})
			hb.Start(gctx)
			defer hb.Stop()
		}
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// serve answers inbound requests one at a time. Processors that need
// longer defer their answer and reply on their own. Requests arriving
// before login completes are dropped.
func (a *Agent) serve(ctx context.Context, conn *transport.Conn, sub *transport.Subscription, loggedIn *atomic.Bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return transport.ErrConnectionClosed
			}
			if !msg.IsRequest() {
				continue
			}
			if !loggedIn.Load() {
				a.logger.Debug("dropping request before login", "path", msg.Path, "method", msg.Method)
				continue
			}
			resp := a.config.Tree.HandleRequest(ctx, msg, conn)
			if resp == nil {
				continue
			}
			if err := conn.Send(resp); err != nil {
				return fmt.Errorf("send response: %w", err)
			}
		}
	}
}

func (a *Agent) setClient(c *client.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = c
}

func (a *Agent) stateChanged(oldState, newState connection.State) {
	a.stateEvent(log.StateEntityConnection, oldState.String(), newState.String(), "")
	if a.config.OnStateChange != nil {
		a.config.OnStateChange(oldState, newState)
	}
}

func (a *Agent) stateEvent(entity log.StateEntity, oldState, newState, reason string) {
	if a.config.ProtocolLogger == nil {
		return
	}
	a.mu.RLock()
	connID := a.connID
	a.mu.RUnlock()
	a.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
