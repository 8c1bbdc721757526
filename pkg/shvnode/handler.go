package shvnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

// HandleRequest routes rq and returns the response to send. It returns nil
// for non-requests and for deferred answers. Processor panics are recovered
// and reported as MethodCallException.
func (t *NodesTree) HandleRequest(ctx context.Context, rq *wire.Message, responder Responder) *wire.Message {
	if !rq.IsRequest() || !rq.HasRequestID() {
		t.logger.Warn("dropping message that is not a request", "message", rq.String())
		return nil
	}

	start := time.Now()
	result, err := t.safeProcess(ctx, rq, responder)
	if errors.Is(err, ErrDeferred) {
		t.logger.Debug("response deferred", "rq_id", rq.RequestID, "method", rq.Method)
		return nil
	}
	if err != nil {
		t.logger.Info("request failed",
			"rq_id", rq.RequestID, "path", rq.Path, "method", rq.Method, "error", err)
	} else {
		t.logger.Debug("request handled",
			"rq_id", rq.RequestID, "path", rq.Path, "method", rq.Method, "duration", time.Since(start))
	}

	resp, rerr := NewResponse(rq, result, err)
	if rerr != nil {
		t.logger.Warn("cannot build response", "rq_id", rq.RequestID, "error", rerr)
		return nil
	}
	return resp
}

func (t *NodesTree) safeProcess(ctx context.Context, rq *wire.Message, responder Responder) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("processor panic", "rq_id", rq.RequestID, "method", rq.Method, "panic", r)
			result, err = nil, fmt.Errorf("method %s panicked: %v", rq.Method, r)
		}
	}()
	return t.Process(ctx, rq, responder)
}

// NewResponse builds the response to rq carrying result, or the error
// response for err.
func NewResponse(rq *wire.Message, result any, err error) (*wire.Message, error) {
	resp, perr := rq.PrepareResponse()
	if perr != nil {
		return nil, perr
	}
	if err != nil {
		resp.SetError(ToRPCError(err))
		return resp, nil
	}
	resp.SetResult(result)
	return resp, nil
}

// ToRPCError maps an error to its protocol error code.
func ToRPCError(err error) *wire.RPCError {
	var rpcErr *wire.RPCError
	var routingErr *RoutingError
	var paramsErr *ParamsError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.As(err, &routingErr):
		return wire.NewRPCError(wire.CodeMethodNotFound, routingErr.Error())
	case errors.As(err, &paramsErr):
		return wire.NewRPCError(wire.CodeInvalidParams, paramsErr.Error())
	case errors.Is(err, ErrMethodEmpty), errors.Is(err, wire.ErrNotRequest):
		return wire.NewRPCError(wire.CodeInvalidRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return wire.NewRPCError(wire.CodeMethodCallTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		return wire.NewRPCError(wire.CodeMethodCallCancelled, err.Error())
	default:
		return wire.NewRPCError(wire.CodeMethodCallException, err.Error())
	}
}
