// Command shvcall calls methods on a broker, once or interactively.
//
// Usage:
//
//	shvcall [flags] [path:method [params]]
//
// Without a method it starts an interactive shell with ls, dir and cd.
// Params are JSON.
//
// Examples:
//
//	# List the broker root
//	shvcall -host broker.local -u admin -password secret :ls
//
//	# Read the first 100 bytes of an exported file
//	shvcall -u admin -password secret 'test/agent/fs/log.txt:read' '[0, 100]'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shv-protocol/shv-go/internal/logging"
	"github.com/shv-protocol/shv-go/pkg/client"
	"github.com/shv-protocol/shv-go/pkg/transport"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

type options struct {
	host     string
	port     int
	scheme   string
	wsPath   string
	user     string
	password string
	protocol string
	timeout  time.Duration
	verbose  string
	insecure bool
	args     []string
}

func parseOptions(args []string, output io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("shvcall", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.host, "host", "127.0.0.1", "Broker host")
	fs.StringVar(&o.host, "s", "127.0.0.1", "Broker host (shorthand)")
	fs.IntVar(&o.port, "port", 0, "Broker port (0 selects the scheme default)")
	fs.StringVar(&o.scheme, "scheme", transport.SchemeTCP, "Transport: tcp, ssl, ws or wss")
	fs.StringVar(&o.wsPath, "ws-path", "", "HTTP path for ws and wss")
	fs.StringVar(&o.user, "user", "", "Login user")
	fs.StringVar(&o.user, "u", "", "Login user (shorthand)")
	fs.StringVar(&o.password, "password", "", "Login password")
	fs.StringVar(&o.protocol, "protocol", wire.ProtocolCBOR.String(), "Wire encoding: cbor or json")
	fs.DurationVar(&o.timeout, "timeout", client.DefaultCallTimeout, "Call timeout")
	fs.StringVar(&o.verbose, "v", ":W", "Verbosity levels for targets")
	fs.BoolVar(&o.insecure, "insecure", false, "Skip TLS verification (testing only)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.args = fs.Args()
	if o.user == "" {
		return nil, errors.New("user is required")
	}
	if len(o.args) > 2 {
		return nil, fmt.Errorf("expected path:method [params], got %d arguments", len(o.args))
	}
	if len(o.args) > 0 && !strings.Contains(o.args[0], ":") {
		return nil, fmt.Errorf("expected path:method, got %q", o.args[0])
	}
	return o, nil
}

func (o *options) params() (*client.ConnectionParams, error) {
	p := client.NewConnectionParams(o.host, o.port, o.user, o.password)
	p.Scheme = o.scheme
	p.WSPath = o.wsPath
	// A caller has no heartbeat and no device identity.
	p.HeartbeatInterval = 0
	proto, err := wire.ParseProtocol(o.protocol)
	if err != nil {
		return nil, err
	}
	p.Protocol = proto
	if o.insecure {
		p.TLS = &transport.TLSConfig{InsecureSkipVerify: true}
	}
	return p, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shvcall: %v\n", err)
		os.Exit(2)
	}
	logger, _, err := logging.New(os.Stderr, opts.verbose, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shvcall: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "shvcall: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, logger *slog.Logger) error {
	params, err := opts.params()
	if err != nil {
		return err
	}
	dc := params.DialConfig()
	fc, err := transport.Dial(ctx, dc)
	if err != nil {
		return fmt.Errorf("connect %s: %w", dc.Address(), err)
	}
	conn := transport.NewConn(fc, transport.ConnConfig{Protocol: params.Protocol, Logger: logger})
	defer conn.Close()
	c := client.New(conn, client.Config{Timeout: opts.timeout, Logger: logger})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := conn.Run(gctx)
		if err == nil && gctx.Err() == nil {
			err = transport.ErrConnectionClosed
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		if err := c.Login(gctx, params); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if len(opts.args) == 0 {
			return NewShell(c, os.Stdout).Run(gctx)
		}
		return oneShot(gctx, c, os.Stdout, opts.args)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// oneShot performs the call given on the command line.
func oneShot(ctx context.Context, caller Caller, out io.Writer, args []string) error {
	line := strings.Join(args, " ")
	sh := NewShell(caller, out)
	return sh.Exec(ctx, line)
}
