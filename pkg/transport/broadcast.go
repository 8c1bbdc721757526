package transport

import (
	"sync"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

// DefaultSubscriptionBuffer is the per-subscriber queue length.
const DefaultSubscriptionBuffer = 16

// Broadcaster fans every published message out to all current subscribers.
// A subscriber whose queue is full blocks Publish until it reads or
// unsubscribes.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	// pubMu serializes Publish and Close so a channel is never closed
	// while a delivery to it is in progress.
	pubMu sync.Mutex
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscription receives every message published after it was created.
type Subscription struct {
	ch   chan *wire.Message
	done chan struct{}
	once sync.Once
	b    *Broadcaster
}

// Subscribe registers a new subscriber. After Close the returned
// subscription's channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		ch:   make(chan *wire.Message, DefaultSubscriptionBuffer),
		done: make(chan struct{}),
		b:    b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers m to every subscriber registered at the time of the call.
// The message is shared and must not be modified by receivers.
func (b *Broadcaster) Publish(m *wire.Message) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- m:
		case <-s.done:
		}
	}
}

// Close closes every subscriber channel. Later Subscribe calls return
// closed subscriptions. Close is idempotent.
func (b *Broadcaster) Close() {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// C returns the delivery channel. It is closed when the broadcaster closes.
func (s *Subscription) C() <-chan *wire.Message {
	return s.ch
}

// Unsubscribe stops delivery. Safe to call more than once and
// concurrently with Publish.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
	})
}
