package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/chzyer/readline"

	"github.com/shv-protocol/shv-go/pkg/shvnode"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Caller performs one remote call.
type Caller interface {
	CallMethod(ctx context.Context, path, method string, params any) (any, error)
}

// errQuit ends the shell.
var errQuit = errors.New("quit")

// Shell is the interactive command loop. Paths are relative to the
// current directory unless they start with "/".
type Shell struct {
	caller Caller
	out    io.Writer
	cwd    []string
}

// NewShell creates a shell writing results to out.
func NewShell(caller Caller, out io.Writer) *Shell {
	return &Shell{caller: caller, out: out}
}

// Cwd returns the current path.
func (s *Shell) Cwd() string {
	return shvnode.JoinPath(s.cwd)
}

// Run reads commands until EOF, "quit" or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(shellCompletions()...),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.out = rl.Stdout()

	s.printHelp()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		rl.SetPrompt(s.prompt())
	}
}

func (s *Shell) prompt() string {
	return "shv:/" + s.Cwd() + "> "
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help", "?":
		s.printHelp()
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "pwd":
		fmt.Fprintln(s.out, "/"+s.Cwd())
		return nil
	case "cd":
		return s.cd(ctx, rest)
	case "ls", "dir":
		path, params, err := splitPathParams(rest)
		if err != nil {
			return err
		}
		return s.call(ctx, s.resolve(path), strings.ToLower(cmd), params)
	case "call":
		target, params, err := splitPathParams(rest)
		if err != nil {
			return err
		}
		path, method, err := s.splitMethod(target)
		if err != nil {
			return err
		}
		return s.call(ctx, path, method, params)
	default:
		// path:method [params]
		if strings.Contains(cmd, ":") {
			path, method, err := s.splitMethod(cmd)
			if err != nil {
				return err
			}
			params, err := parseParams(rest)
			if err != nil {
				return err
			}
			return s.call(ctx, path, method, params)
		}
		return fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
	}
}

func (s *Shell) cd(ctx context.Context, arg string) error {
	if arg == "" || arg == "/" {
		s.cwd = nil
		return nil
	}
	target := shvnode.SplitPath(s.resolve(arg))
	// The node exists when its parent lists it.
	if len(target) > 0 {
		parent := shvnode.JoinPath(target[:len(target)-1])
		name := target[len(target)-1]
		res, err := s.caller.CallMethod(ctx, parent, shvnode.MethodLs, name)
		if err != nil {
			return err
		}
		if list, ok := wire.AsList(res); !ok || len(list) == 0 {
			return fmt.Errorf("no such node: /%s", shvnode.JoinPath(target))
		}
	}
	s.cwd = target
	return nil
}

// resolve turns a shell path into an absolute node path. ".." walks up.
func (s *Shell) resolve(p string) string {
	var parts []string
	if !strings.HasPrefix(p, "/") {
		parts = append(parts, s.cwd...)
	}
	for _, seg := range shvnode.SplitPath(p) {
		switch seg {
		case ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return shvnode.JoinPath(parts)
}

func (s *Shell) splitMethod(target string) (string, string, error) {
	i := strings.LastIndex(target, ":")
	if i < 0 || i == len(target)-1 {
		return "", "", fmt.Errorf("expected path:method, got %q", target)
	}
	return s.resolve(target[:i]), target[i+1:], nil
}

func (s *Shell) call(ctx context.Context, path, method string, params any) error {
	res, err := s.caller.CallMethod(ctx, path, method, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, FormatValue(res))
	return nil
}

// splitPathParams splits "path [json]" where the path is optional when
// the argument starts with JSON.
func splitPathParams(arg string) (string, any, error) {
	if arg == "" {
		return "", nil, nil
	}
	if strings.ContainsAny(arg[:1], `[{"0123456789-`) || arg == "true" || arg == "false" || arg == "null" {
		params, err := parseParams(arg)
		return "", params, err
	}
	path, rest, _ := strings.Cut(arg, " ")
	params, err := parseParams(strings.TrimSpace(rest))
	return path, params, err
}

// parseParams decodes JSON call parameters. Empty means none.
func parseParams(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid params %q: %w", s, err)
	}
	return fromJSON(v), nil
}

// fromJSON turns json.Number into int64 where possible.
func fromJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = fromJSON(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = fromJSON(val)
		}
		return t
	default:
		return v
	}
}

// FormatValue renders a result as indented JSON. Byte strings that hold
// text are shown as text.
func FormatValue(v any) string {
	if b, ok := v.([]byte); ok {
		if utf8.Valid(b) {
			return string(b)
		}
		return fmt.Sprintf("<%d bytes>", len(b))
	}
	data, err := json.MarshalIndent(wire.Normalize(v), "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func shellCompletions() []readline.PrefixCompleterInterface {
	return []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("ls"),
		readline.PcItem("dir"),
		readline.PcItem("cd"),
		readline.PcItem("pwd"),
		readline.PcItem("call"),
		readline.PcItem("quit"),
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  ls [path] [params]               - List child nodes
  dir [path] [params]              - List methods
  cd <path>                        - Change the current node
  pwd                              - Show the current node
  call <path:method> [params]      - Call a method
  <path:method> [params]           - Same as call
  help                             - Show this help
  quit                             - Exit

  Params are JSON, for example: fs/readme.txt:read [0, 100]`)
}
