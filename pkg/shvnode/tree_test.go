package shvnode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// stubProcessor serves a fixed method list at its own node and optional
// virtual children.
type stubProcessor struct {
	methods  []*model.MetaMethod
	children map[string][]Child
	call     func(ctx context.Context, c *Call) (any, error)

	mu    sync.Mutex
	calls []*Call
}

func newStub(names ...string) *stubProcessor {
	p := &stubProcessor{}
	for _, n := range names {
		p.methods = append(p.methods, &model.MetaMethod{
			Name:        n,
			Signature:   model.SignatureRetParam,
			AccessGrant: model.AccessBrowse,
		})
	}
	return p
}

func (p *stubProcessor) Methods(path []string) []*model.MetaMethod {
	if len(path) > 0 && p.children == nil {
		return nil
	}
	return p.methods
}

func (p *stubProcessor) Children(path []string) []Child {
	return p.children[JoinPath(path)]
}

func (p *stubProcessor) IsLeaf() bool {
	return p.children == nil
}

func (p *stubProcessor) Call(ctx context.Context, c *Call) (any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
	if p.call != nil {
		return p.call(ctx, c)
	}
	return c.Method + "-result", nil
}

func (p *stubProcessor) received() []*Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Call(nil), p.calls...)
}

// agentTree mirrors the agent layout: a root with device and command
// methods and a non-leaf child "fs".
func agentTree(t *testing.T) (*NodesTree, *stubProcessor, *stubProcessor) {
	t.Helper()
	device := newStub("dir", "ls", "appName", "deviceId")
	command := newStub("runCmd")
	root := NewTreeNode("", device, command)

	fsProc := newStub("dir", "ls")
	fsProc.children = map[string][]Child{
		"":  {{Name: "a", HasChildren: true}, {Name: "readme.txt"}},
		"a": {{Name: "b", HasChildren: false}},
	}
	require.NoError(t, root.AddChild(NewTreeNode("fs", fsProc)))
	return NewNodesTree(root), device, fsProc
}

func request(path, method string, params any) *wire.Message {
	return wire.NewRequest(42, path, method, params)
}

func TestResolve(t *testing.T) {
	tree, _, _ := agentTree(t)

	tests := []struct {
		path         string
		wantNode     string
		wantResolved []string
		wantLocal    []string
	}{
		{"", "", []string{}, []string{}},
		{"fs", "fs", []string{"fs"}, []string{}},
		{"fs/a/b", "fs", []string{"fs"}, []string{"a", "b"}},
		{"/fs//a/", "fs", []string{"fs"}, []string{"a"}},
		{"nope/x", "", []string{}, []string{"nope", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node, resolved, local := tree.Resolve(SplitPath(tt.path))
			require.NotNil(t, node)
			assert.Equal(t, tt.wantNode, node.Name())
			assert.Equal(t, tt.wantResolved, append([]string{}, resolved...))
			assert.Equal(t, tt.wantLocal, append([]string{}, local...))
		})
	}
}

func TestResolveWithoutRoot(t *testing.T) {
	tree := NewNodesTree(nil)
	node, _, local := tree.Resolve([]string{"a"})
	assert.Nil(t, node)
	assert.Equal(t, []string{"a"}, local)

	_, err := tree.Process(context.Background(), request("a", "get", nil), nil)
	var routingErr *RoutingError
	assert.True(t, errors.As(err, &routingErr))
}

func TestDir(t *testing.T) {
	tree, _, _ := agentTree(t)
	ctx := context.Background()

	t.Run("all methods in declared order", func(t *testing.T) {
		result, err := tree.Process(ctx, request("", "dir", nil), nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"dir", "ls", "appName", "deviceId", "runCmd"}, result)
	})

	t.Run("filter returns first match only", func(t *testing.T) {
		result, err := tree.Process(ctx, request("", "dir", []any{"appName"}), nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"appName"}, result)
	})

	t.Run("bare string filter", func(t *testing.T) {
		result, err := tree.Process(ctx, request("", "dir", "runCmd"), nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"runCmd"}, result)
	})

	t.Run("filter without match", func(t *testing.T) {
		result, err := tree.Process(ctx, request("", "dir", []any{"nope"}), nil)
		require.NoError(t, err)
		assert.Equal(t, []any{}, result)
	})

	t.Run("attribute mask", func(t *testing.T) {
		result, err := tree.Process(ctx, request("", "dir", []any{"appName", int64(model.DirAttrSignature | model.DirAttrAccessGrant)}), nil)
		require.NoError(t, err)
		assert.Equal(t, []any{[]any{"appName", int64(model.SignatureRetParam), model.AccessBrowse}}, result)
	})

	t.Run("null filter with mask", func(t *testing.T) {
		result, err := tree.Process(ctx, request("fs", "dir", []any{nil, int64(model.DirAttrAll)}), nil)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, []any{"dir", int64(model.SignatureRetParam), int64(0), model.AccessBrowse, ""}, result.([]any)[0])
	})
}

func TestLs(t *testing.T) {
	tree, _, _ := agentTree(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		path   string
		params any
		want   []any
	}{
		{"root names", "", nil, []any{"fs"}},
		{"root with children info", "", []any{nil, int64(model.LsAttrHasChildren)}, []any{[]any{"fs", true}}},
		{"bool mask", "", []any{"", true}, []any{[]any{"fs", true}}},
		{"virtual children", "fs", nil, []any{"a", "readme.txt"}},
		{"virtual children info", "fs", []any{nil, int64(1)}, []any{[]any{"a", true}, []any{"readme.txt", false}}},
		{"filtered", "fs", []any{"readme.txt"}, []any{"readme.txt"}},
		{"deeper local path", "fs/a", nil, []any{"b"}},
		{"filter without match", "", "nope", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tree.Process(ctx, request(tt.path, "ls", tt.params), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestLsVirtualChildrenBeforeNodes(t *testing.T) {
	mixed := newStub("dir", "ls")
	mixed.children = map[string][]Child{"": {{Name: "virtual"}}}
	root := NewTreeNode("", mixed)
	require.NoError(t, root.AddChild(NewTreeNode("real", newStub("dir"))))

	result, err := NewNodesTree(root).Process(context.Background(), request("", "ls", []any{nil, int64(1)}), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"virtual", false}, []any{"real", false}}, result)
}

func TestDirLsInvalidParams(t *testing.T) {
	tree, _, _ := agentTree(t)
	for _, params := range []any{
		[]any{"a", int64(1), "extra"},
		[]any{int64(3)},
		[]any{"a", "mask"},
		[]any{"a", int64(256)},
		3.5,
	} {
		_, err := tree.Process(context.Background(), request("", "dir", params), nil)
		var paramsErr *ParamsError
		assert.True(t, errors.As(err, &paramsErr), "params %v: got %v", params, err)
	}
}

func TestDispatch(t *testing.T) {
	tree, device, fsProc := agentTree(t)
	ctx := context.Background()

	result, err := tree.Process(ctx, request("", "appName", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "appName-result", result)
	require.Len(t, device.received(), 1)
	assert.Empty(t, device.received()[0].Path)

	// The remaining path and the original params reach the processor.
	_, err = tree.Process(ctx, request("fs/a/b", "ls2", nil), nil)
	var routingErr *RoutingError
	require.True(t, errors.As(err, &routingErr))
	assert.Equal(t, "fs", routingErr.Path)
	assert.Equal(t, []string{"a", "b"}, routingErr.LocalPath)

	fsProc.methods = append(fsProc.methods, &model.MetaMethod{Name: "read"})
	_, err = tree.Process(ctx, request("fs/a/b", "read", []any{int64(0), int64(10)}), nil)
	require.NoError(t, err)
	calls := fsProc.received()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a", "b"}, calls[0].Path)
	assert.Equal(t, []any{int64(0), int64(10)}, calls[0].Params)
}

func TestDispatchFirstProcessorWins(t *testing.T) {
	first := newStub("get")
	first.call = func(context.Context, *Call) (any, error) { return "first", nil }
	second := newStub("get", "set")
	second.call = func(context.Context, *Call) (any, error) { return "second", nil }
	tree := NewNodesTree(NewTreeNode("", first, second))

	result, err := tree.Process(context.Background(), request("", "get", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "first", result)

	result, err = tree.Process(context.Background(), request("", "set", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestProcessRejects(t *testing.T) {
	tree, _, _ := agentTree(t)

	_, err := tree.Process(context.Background(), wire.NewSignal("", "chng", nil), nil)
	assert.ErrorIs(t, err, wire.ErrNotRequest)

	_, err = tree.Process(context.Background(), request("", "", nil), nil)
	assert.ErrorIs(t, err, ErrMethodEmpty)
}
