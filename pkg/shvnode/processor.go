package shvnode

import (
	"context"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Processor serves the methods of a node. The path argument is the local
// path below the node the processor is attached to; processors that do not
// expose virtual children only answer for an empty path.
type Processor interface {
	// Methods returns the method descriptors for path, in declared order.
	Methods(path []string) []*model.MetaMethod

	// Children returns the virtual children below path.
	Children(path []string) []Child

	// IsLeaf reports whether the processor never exposes children.
	IsLeaf() bool

	// Call executes call.Method. A processor that answers later returns
	// ErrDeferred and eventually calls call.Reply.
	Call(ctx context.Context, call *Call) (any, error)
}

// Child is a virtual child reported by a processor.
type Child struct {
	Name        string
	HasChildren bool
}

// Responder sends a response message back to the caller.
type Responder interface {
	Send(msg *wire.Message) error
}

// Call is a request dispatched to a processor.
type Call struct {
	// Request is the original request. Read-only.
	Request *wire.Message

	// Method is the requested method name.
	Method string

	// Path is the local path below the resolved node.
	Path []string

	// Params are the request parameters as decoded.
	Params any

	responder Responder
}

// NewCall creates a call for rq addressed to the local path.
func NewCall(rq *wire.Message, path []string, responder Responder) *Call {
	return &Call{
		Request:   rq,
		Method:    rq.Method,
		Path:      path,
		Params:    rq.Params,
		responder: responder,
	}
}

// Reply sends the response for a deferred call. err is converted to an
// error response the same way HandleRequest converts it.
func (c *Call) Reply(result any, err error) error {
	if c.responder == nil {
		return ErrNoResponder
	}
	resp, rerr := NewResponse(c.Request, result, err)
	if rerr != nil {
		return rerr
	}
	return c.responder.Send(resp)
}
