package shvnode

import (
	"context"
	"log/slog"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Introspection methods answered by the router.
const (
	MethodDir = "dir"
	MethodLs  = "ls"
)

// NodesTree routes requests through a tree of nodes.
type NodesTree struct {
	root   *TreeNode
	logger *slog.Logger
}

// NewNodesTree creates a router over root. A nil root routes nothing.
func NewNodesTree(root *TreeNode) *NodesTree {
	return &NodesTree{
		root:   root,
		logger: slog.Default().With("target", "shvnode"),
	}
}

// SetLogger sets the operational logger.
func (t *NodesTree) SetLogger(logger *slog.Logger) {
	t.logger = logger.With("target", "shvnode")
}

// Root returns the root node.
func (t *NodesTree) Root() *TreeNode {
	return t.root
}

// Resolve walks path from the root and returns the deepest matching node,
// the matched segments and the unmatched remainder. With a nil root the
// node is nil and the whole path is local.
func (t *NodesTree) Resolve(path []string) (node *TreeNode, resolved, local []string) {
	if t.root == nil {
		return nil, nil, path
	}
	node = t.root
	i := 0
	for ; i < len(path); i++ {
		child := node.Child(path[i])
		if child == nil {
			break
		}
		node = child
	}
	return node, path[:i:i], path[i:]
}

// Process routes rq and returns the method result. A processor answering
// later makes Process return ErrDeferred; responder is handed to it for
// the eventual reply.
func (t *NodesTree) Process(ctx context.Context, rq *wire.Message, responder Responder) (any, error) {
	if !rq.IsRequest() {
		return nil, wire.ErrNotRequest
	}
	if rq.Method == "" {
		return nil, ErrMethodEmpty
	}

	node, resolved, local := t.Resolve(SplitPath(rq.Path))
	t.logger.Debug("request resolved",
		"rq_id", rq.RequestID, "method", rq.Method,
		"path", JoinPath(resolved), "local_path", JoinPath(local))
	if node == nil {
		return nil, &RoutingError{Method: rq.Method, Path: "", LocalPath: local}
	}

	switch rq.Method {
	case MethodDir:
		filter, mask, err := parseFilterParams(rq.Method, rq.Params)
		if err != nil {
			return nil, err
		}
		return dir(node, local, filter, model.DirAttribute(mask)), nil
	case MethodLs:
		filter, mask, err := parseFilterParams(rq.Method, rq.Params)
		if err != nil {
			return nil, err
		}
		return ls(node, local, filter, model.LsAttribute(mask)), nil
	}

	for _, p := range node.processors {
		if model.FindMethod(p.Methods(local), rq.Method) == nil {
			continue
		}
		return p.Call(ctx, NewCall(rq, local, responder))
	}
	return nil, &RoutingError{Method: rq.Method, Path: JoinPath(resolved), LocalPath: local}
}

func dir(node *TreeNode, local []string, filter string, mask model.DirAttribute) []any {
	out := []any{}
	for _, p := range node.processors {
		for _, mm := range p.Methods(local) {
			if filter == "" {
				out = append(out, mm.DirAttributes(mask))
				continue
			}
			if mm.Name == filter {
				return append(out, mm.DirAttributes(mask))
			}
		}
	}
	return out
}

func ls(node *TreeNode, local []string, filter string, mask model.LsAttribute) []any {
	withInfo := mask&model.LsAttrHasChildren != 0
	out := []any{}
	emit := func(name string, hasChildren bool) {
		if filter != "" && filter != name {
			return
		}
		if withInfo {
			out = append(out, []any{name, hasChildren})
		} else {
			out = append(out, name)
		}
	}

	for _, p := range node.processors {
		if p.IsLeaf() {
			continue
		}
		for _, c := range p.Children(local) {
			emit(c.Name, c.HasChildren)
		}
	}
	if len(local) == 0 {
		for _, c := range node.children {
			emit(c.name, !c.IsLeaf())
		}
	}
	return out
}

// parseFilterParams reads the optional [filter, mask] parameters of dir
// and ls. A bare string is a filter, a bare integer is a mask and a bool
// mask maps true to the has-children bit. The mask defaults to 0.
func parseFilterParams(method string, params any) (string, uint8, error) {
	if params == nil {
		return "", 0, nil
	}
	if list, ok := wire.AsList(params); ok {
		if len(list) > 2 {
			return "", 0, NewParamsError(method, "expected at most 2 params, got %d", len(list))
		}
		var filter string
		var mask uint8
		if len(list) > 0 && list[0] != nil {
			s, ok := wire.AsString(list[0])
			if !ok {
				return "", 0, NewParamsError(method, "filter must be a string, got %T", list[0])
			}
			filter = s
		}
		if len(list) > 1 && list[1] != nil {
			m, err := parseMask(method, list[1])
			if err != nil {
				return "", 0, err
			}
			mask = m
		}
		return filter, mask, nil
	}
	if s, ok := wire.AsString(params); ok {
		return s, 0, nil
	}
	mask, err := parseMask(method, params)
	return "", mask, err
}

func parseMask(method string, v any) (uint8, error) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	n, ok := wire.AsInt(v)
	if !ok || n < 0 || n > 0xff {
		return 0, NewParamsError(method, "attribute mask must be an integer in 0..255, got %v", v)
	}
	return uint8(n), nil
}
