package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

type recordedCall struct {
	path, method string
	params       any
}

// fakeCaller serves ls from a fixed tree and echoes everything else.
type fakeCaller struct {
	children map[string][]any
	calls    []recordedCall
}

func (f *fakeCaller) CallMethod(_ context.Context, path, method string, params any) (any, error) {
	f.calls = append(f.calls, recordedCall{path, method, params})
	switch method {
	case "ls":
		names := f.children[path]
		if name, ok := params.(string); ok {
			for _, n := range names {
				if n == name {
					return []any{n}, nil
				}
			}
			return []any{}, nil
		}
		return names, nil
	case "fail":
		return nil, wire.NewRPCError(wire.CodeMethodNotFound, "method \"fail\" not found")
	default:
		return map[string]any{"path": path, "method": method}, nil
	}
}

func (f *fakeCaller) last() recordedCall {
	return f.calls[len(f.calls)-1]
}

func newFake() *fakeCaller {
	return &fakeCaller{children: map[string][]any{
		"":              {"test"},
		"test":          {"agent"},
		"test/agent":    {"fs"},
		"test/agent/fs": {"readme.txt"},
	}}
}

func TestShellNavigation(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	var out bytes.Buffer
	sh := NewShell(f, &out)

	require.NoError(t, sh.Exec(ctx, "cd test/agent"))
	assert.Equal(t, "test/agent", sh.Cwd())

	require.NoError(t, sh.Exec(ctx, "ls"))
	assert.Equal(t, recordedCall{"test/agent", "ls", nil}, f.last())

	require.NoError(t, sh.Exec(ctx, "cd fs"))
	require.NoError(t, sh.Exec(ctx, "cd .."))
	assert.Equal(t, "test/agent", sh.Cwd())

	err := sh.Exec(ctx, "cd nosuch")
	assert.ErrorContains(t, err, "no such node")
	assert.Equal(t, "test/agent", sh.Cwd())

	require.NoError(t, sh.Exec(ctx, "cd /test"))
	assert.Equal(t, "test", sh.Cwd())

	out.Reset()
	require.NoError(t, sh.Exec(ctx, "pwd"))
	assert.Equal(t, "/test\n", out.String())

	require.NoError(t, sh.Exec(ctx, "cd"))
	assert.Equal(t, "", sh.Cwd())
}

func TestShellCalls(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		line string
		want recordedCall
	}{
		{"dir", recordedCall{"", "dir", nil}},
		{"dir test/agent", recordedCall{"test/agent", "dir", nil}},
		{`dir test/agent "appName"`, recordedCall{"test/agent", "dir", "appName"}},
		{`ls ["fs", 1]`, recordedCall{"", "ls", []any{"fs", int64(1)}}},
		{"call test/agent:deviceId", recordedCall{"test/agent", "deviceId", nil}},
		{"test/agent/fs/readme.txt:read [0, 100]", recordedCall{"test/agent/fs/readme.txt", "read", []any{int64(0), int64(100)}}},
		{`test/agent:runCmd {"cmd": "uptime"}`, recordedCall{"test/agent", "runCmd", map[string]any{"cmd": "uptime"}}},
		{":ls", recordedCall{"", "ls", nil}},
		{"x:ratio 0.5", recordedCall{"x", "ratio", 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := newFake()
			var out bytes.Buffer
			require.NoError(t, NewShell(f, &out).Exec(ctx, tt.line))
			assert.Equal(t, tt.want, f.last())
			assert.NotEmpty(t, out.String())
		})
	}
}

func TestShellErrors(t *testing.T) {
	ctx := context.Background()
	sh := NewShell(newFake(), io.Discard)

	var rpcErr *wire.RPCError
	require.ErrorAs(t, sh.Exec(ctx, "test:fail"), &rpcErr)
	assert.Equal(t, wire.CodeMethodNotFound, rpcErr.Code)

	assert.ErrorContains(t, sh.Exec(ctx, "frobnicate"), "unknown command")
	assert.ErrorContains(t, sh.Exec(ctx, "call test"), "expected path:method")
	assert.ErrorContains(t, sh.Exec(ctx, "test:read [0,"), "invalid params")
	assert.ErrorIs(t, sh.Exec(ctx, "quit"), errQuit)
	assert.NoError(t, sh.Exec(ctx, "   "))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "hello", FormatValue([]byte("hello")))
	assert.Equal(t, "<2 bytes>", FormatValue([]byte{0xff, 0xfe}))
	assert.Equal(t, `"x"`, FormatValue("x"))
	assert.Equal(t, "{\n  \"a\": 1\n}", FormatValue(map[any]any{"a": 1}))
}

func TestParseOptions(t *testing.T) {
	o, err := parseOptions([]string{"-u", "admin", "-password", "pw", "test:ls", `"agent"`}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"test:ls", `"agent"`}, o.args)

	p, err := o.params()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", p.Host)
	assert.Zero(t, p.HeartbeatInterval)
	assert.Equal(t, wire.ProtocolCBOR, p.Protocol)

	_, err = parseOptions([]string{"test:ls"}, io.Discard)
	assert.Error(t, err)
	_, err = parseOptions([]string{"-u", "a", "notamethod"}, io.Discard)
	assert.Error(t, err)

	o, err = parseOptions([]string{"-u", "a", "-protocol", "xml"}, io.Discard)
	require.NoError(t, err)
	_, err = o.params()
	assert.Error(t, err)
}

func TestOneShot(t *testing.T) {
	f := newFake()
	var out bytes.Buffer
	require.NoError(t, oneShot(context.Background(), f, &out, []string{"test/agent:appName"}))
	assert.Equal(t, recordedCall{"test/agent", "appName", nil}, f.last())
	assert.Contains(t, out.String(), `"method": "appName"`)
}
