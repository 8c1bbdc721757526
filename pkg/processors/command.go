package processors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/shvnode"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// MethodRunCmd runs a local command and answers with its stdout.
const MethodRunCmd = "runCmd"

// DefaultCommandTimeout bounds a single runCmd execution.
const DefaultCommandTimeout = 60 * time.Second

// CommandConfig configures a CommandProcessor.
type CommandConfig struct {
	// Timeout bounds each command (default 60s).
	Timeout time.Duration

	// Logger is the operational logger (default slog.Default()).
	Logger *slog.Logger
}

// CommandProcessor serves runCmd. Commands run in their own goroutine and
// the response is sent when they finish, so a long command never blocks
// request dispatch.
type CommandProcessor struct {
	*MethodSet

	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewCommandProcessor creates a command processor.
func NewCommandProcessor(cfg CommandConfig) *CommandProcessor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCommandTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &CommandProcessor{
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With("target", "runcmd"),
	}
	p.MethodSet = NewMethodSet(Method{
		Meta: &model.MetaMethod{
			Name:        MethodRunCmd,
			Signature:   model.SignatureRetParam,
			Flags:       model.FlagNone,
			AccessGrant: model.AccessWrite,
			Description: "Run a command, params: \"cmd\" or [\"cmd\", \"arg\", ...]",
		},
		Handler: p.runCmd,
	})
	return p
}

// Wait blocks until all running commands have replied.
func (p *CommandProcessor) Wait() {
	p.wg.Wait()
}

func (p *CommandProcessor) runCmd(ctx context.Context, call *shvnode.Call) (any, error) {
	argv, err := commandArgs(call.Params)
	if err != nil {
		return nil, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		out, err := p.execute(ctx, argv)
		if rerr := call.Reply(out, err); rerr != nil {
			p.logger.Warn("cannot send runCmd response", "rq_id", call.Request.RequestID, "error", rerr)
		}
	}()
	return nil, shvnode.ErrDeferred
}

func (p *CommandProcessor) execute(ctx context.Context, argv []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	p.logger.Debug("command finished", "cmd", argv[0], "duration", time.Since(start), "error", err)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: timed out after %v", argv[0], p.timeout)
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	return out, nil
}

// commandArgs accepts "cmd" or ["cmd", "arg", ...].
func commandArgs(params any) ([]string, error) {
	if s, ok := wire.AsString(params); ok {
		if s == "" {
			return nil, shvnode.NewParamsError(MethodRunCmd, "empty command")
		}
		return []string{s}, nil
	}
	list, ok := wire.AsList(params)
	if !ok {
		return nil, shvnode.NewParamsError(MethodRunCmd, "expected string or list, got %T", params)
	}
	if len(list) == 0 {
		return nil, shvnode.NewParamsError(MethodRunCmd, "param list is empty")
	}
	argv := make([]string, len(list))
	for i, v := range list {
		s, ok := wire.AsString(v)
		if !ok {
			return nil, shvnode.NewParamsError(MethodRunCmd, "argument %d is %T, not a string", i, v)
		}
		argv[i] = s
	}
	if argv[0] == "" {
		return nil, shvnode.NewParamsError(MethodRunCmd, "empty command")
	}
	return argv, nil
}
