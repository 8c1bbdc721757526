package client

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/shv-protocol/shv-go/pkg/transport"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// fakeBroker answers requests arriving on the far end of a pipe.
type fakeBroker struct {
	conn *transport.Conn

	mu       sync.Mutex
	requests []*wire.Message
}

// startPair connects a Client to a fake broker whose handler produces the
// response for each request (nil means no answer).
func startPair(t *testing.T, cfg Config, handle func(rq *wire.Message) *wire.Message) (*Client, *fakeBroker) {
	t.Helper()
	local, remote := net.Pipe()

	agentConn := transport.NewConn(transport.NewStreamConn(local), transport.ConnConfig{ID: "agent"})
	brokerConn := transport.NewConn(transport.NewStreamConn(remote), transport.ConnConfig{ID: "broker"})

	ctx, cancel := context.WithCancel(context.Background())
	go agentConn.Run(ctx)
	go brokerConn.Run(ctx)

	b := &fakeBroker{conn: brokerConn}
	sub := brokerConn.Subscribe()
	go func() {
		defer sub.Unsubscribe()
		for m := range sub.C() {
			if !m.IsRequest() {
				continue
			}
			b.mu.Lock()
			b.requests = append(b.requests, m)
			b.mu.Unlock()
			if resp := handle(m); resp != nil {
				brokerConn.Send(resp)
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		agentConn.Close()
		brokerConn.Close()
	})
	return New(agentConn, cfg), b
}

func (b *fakeBroker) received() []*wire.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*wire.Message(nil), b.requests...)
}

func resultFor(rq *wire.Message, result any) *wire.Message {
	resp, _ := rq.PrepareResponse()
	resp.SetResult(result)
	return resp
}

func errorFor(rq *wire.Message, code wire.ErrorCode, msg string) *wire.Message {
	resp, _ := rq.PrepareResponse()
	resp.SetError(wire.NewRPCError(code, msg))
	return resp
}
