package shvnode

import (
	"errors"
	"fmt"
	"strings"
)

// Router errors.
var (
	// ErrMethodEmpty indicates a request without a method name.
	ErrMethodEmpty = errors.New("method is empty")

	// ErrDeferred is returned by a processor that answers later through
	// Call.Reply. No response is produced for the request right away.
	ErrDeferred = errors.New("response deferred")

	// ErrNoResponder indicates Call.Reply on a call without a responder.
	ErrNoResponder = errors.New("no responder for deferred reply")
)

// Tree construction errors.
var (
	ErrInvalidNodeName = errors.New("invalid node name")
	ErrNodeAttached    = errors.New("node already attached to a parent")
	ErrDuplicateChild  = errors.New("duplicate child name")
	ErrCycle           = errors.New("node would become its own descendant")
)

// RoutingError reports a method that no processor at the resolved node
// declares. It becomes a MethodNotFound response.
type RoutingError struct {
	Method    string
	Path      string
	LocalPath []string
}

func (e *RoutingError) Error() string {
	if len(e.LocalPath) == 0 {
		return fmt.Sprintf("method %q not found on path %q", e.Method, e.Path)
	}
	return fmt.Sprintf("method %q not found on path %q (local path %q)",
		e.Method, e.Path, strings.Join(e.LocalPath, "/"))
}

// ParamsError reports unusable request parameters. It becomes an
// InvalidParams response.
type ParamsError struct {
	Method string
	Reason string
}

// NewParamsError creates a ParamsError with a formatted reason.
func NewParamsError(method, format string, args ...any) *ParamsError {
	return &ParamsError{Method: method, Reason: fmt.Sprintf(format, args...)}
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("invalid params for %s: %s", e.Method, e.Reason)
}
