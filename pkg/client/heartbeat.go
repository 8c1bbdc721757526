package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shv-protocol/shv-go/pkg/log"
)

// Heartbeat defaults.
const (
	// DefaultPingPath is the broker node answering pings.
	DefaultPingPath = ".broker/app"

	// DefaultPingMethod is the ping method name.
	DefaultPingMethod = "ping"
)

// HeartbeatConfig configures a Heartbeat.
type HeartbeatConfig struct {
	// Interval is the ping period (default 60s).
	Interval time.Duration

	// Path and Method address the ping (default .broker/app:ping).
	Path   string
	Method string

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives heartbeat events. Optional.
	ProtocolLogger log.Logger

	// ConnID tags heartbeat events.
	ConnID string
}

// HeartbeatStats contains heartbeat statistics.
type HeartbeatStats struct {
	LastPingTime time.Time
	LastPongTime time.Time
	Sent         int
	Answered     int
	Missed       int
}

// Heartbeat periodically pings the broker. It is advisory only: a missed
// answer is logged and never closes the connection. It stops on Stop,
// context cancellation or when the connection ends.
type Heartbeat struct {
	client *Client
	config HeartbeatConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   HeartbeatStats
}

// NewHeartbeat creates a heartbeat supervisor for c.
func NewHeartbeat(c *Client, config HeartbeatConfig) *Heartbeat {
	if config.Interval <= 0 {
		config.Interval = DefaultHeartbeatInterval
	}
	if config.Path == "" {
		config.Path = DefaultPingPath
	}
	if config.Method == "" {
		config.Method = DefaultPingMethod
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Heartbeat{
		client: c,
		config: config,
		logger: config.Logger.With("target", "heartbeat"),
	}
}

// Start begins the ping loop. The first ping goes out after one interval.
func (h *Heartbeat) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})

	go h.loop(ctx, h.stopCh, h.doneCh)
}

// Stop stops the ping loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	done := h.doneCh
	h.mu.Unlock()

	<-done
}

// IsRunning returns true if the ping loop is active.
func (h *Heartbeat) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Stats returns current heartbeat statistics.
func (h *Heartbeat) Stats() HeartbeatStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Heartbeat) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer func() {
		h.mu.Lock()
		if h.stopCh == stopCh {
			h.running = false
		}
		h.mu.Unlock()
	}()

	// The full interval elapses between the end of one ping wait and the
	// next ping.
	timer := time.NewTimer(h.config.Interval)
	defer timer.Stop()

	connDone := h.client.conn.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-connDone:
			h.logger.Debug("connection closed, heartbeat stopped")
			return
		case <-timer.C:
			if !h.ping(ctx, stopCh) {
				return
			}
			timer.Reset(h.config.Interval)
		}
	}
}

// ping sends one ping and waits for its answer. It returns false when the
// loop should end.
func (h *Heartbeat) ping(ctx context.Context, stopCh <-chan struct{}) bool {
	interval := h.config.Interval
	rq := h.client.NewRequest(h.config.Path, h.config.Method, nil)

	sub := h.client.conn.Subscribe()
	defer sub.Unsubscribe()

	sent := time.Now()
	if err := h.client.Send(rq); err != nil {
		h.logger.Warn("heartbeat send failed", "error", err)
		return true
	}
	h.mu.Lock()
	h.stats.LastPingTime = sent
	h.stats.Sent++
	h.mu.Unlock()
	h.event(log.HeartbeatSent, rq.RequestID, nil)

	timer := time.NewTimer(2 * interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-stopCh:
			return false
		case <-timer.C:
			h.missed(rq.RequestID, "timeout")
			return true
		case m, ok := <-sub.C():
			if !ok {
				return false
			}
			if m.IsResponse() && m.RequestID == rq.RequestID {
				now := time.Now()
				latency := now.Sub(sent)
				h.mu.Lock()
				h.stats.LastPongTime = now
				h.stats.Answered++
				h.mu.Unlock()
				h.logger.Debug("heartbeat answered", "rq_id", rq.RequestID, "latency", latency)
				h.event(log.HeartbeatAnswered, rq.RequestID, &latency)
				return true
			}
			if time.Since(sent) > interval {
				h.missed(rq.RequestID, "no answer within interval")
				return true
			}
		}
	}
}

func (h *Heartbeat) missed(id int64, reason string) {
	h.mu.Lock()
	h.stats.Missed++
	h.mu.Unlock()
	h.logger.Warn("heartbeat not answered", "rq_id", id, "reason", reason)
	h.event(log.HeartbeatMissed, id, nil)
}

func (h *Heartbeat) event(outcome log.HeartbeatOutcome, id int64, latency *time.Duration) {
	if h.config.ProtocolLogger == nil {
		return
	}
	h.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: h.config.ConnID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryHeartbeat,
		Heartbeat: &log.HeartbeatEvent{
			Outcome:   outcome,
			RequestID: id,
			Latency:   latency,
		},
	})
}
