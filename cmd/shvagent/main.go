// Command shvagent is a device agent that logs into a broker and serves a
// small node tree: the device application methods, runCmd and optionally an
// exported directory as the "fs" node.
//
// Usage:
//
//	shvagent [flags]
//
// Flags:
//
//	-host, -s string        Broker host (default "127.0.0.1")
//	-port, -p int           Broker port (default 3755)
//	-user, -u string        Login user
//	-password string        Login password
//	-device-id string       Device id announced at login
//	-mount-point, -m string Mount point requested at login
//	-export-dir, -e string  Directory exported as the 'fs' node
//	-v string               Verbosity levels, for example: rpcmsg:W or :T
//	-config string          YAML or TOML configuration file
//	-discover               Find the broker with mDNS when no host is set
//
// Examples:
//
//	# Connect as device "plc-1" and export /var/log
//	shvagent -host broker.local -u agent -password secret -device-id plc-1 -e /var/log
//
//	# Trace every message
//	shvagent -config /etc/shvagent.yaml -v rpcmsg,:D
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shv-protocol/shv-go/internal/logging"
	"github.com/shv-protocol/shv-go/pkg/agent"
	"github.com/shv-protocol/shv-go/pkg/connection"
	"github.com/shv-protocol/shv-go/pkg/discovery"
	"github.com/shv-protocol/shv-go/pkg/log"
	"github.com/shv-protocol/shv-go/pkg/processors"
	"github.com/shv-protocol/shv-go/pkg/shvnode"
)

const appName = "shvagent"

func main() {
	cfg, err := ParseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(2)
	}

	logger, levels, err := logging.New(os.Stderr, cfg.Verbosity, cfg.LogFormat == "json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("=====================================================")
	logger.Info(appName + " starting up!")
	logger.Info("=====================================================")
	logger.Info("Verbosity levels: " + levels.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.Host == "" && cfg.Discover {
		browser := discovery.NewBrowser(discovery.BrowserConfig{Logger: logger})
		logger.Info("browsing for broker", "service", discovery.ServiceTypeBroker)
		svc, err := browser.Find(ctx, 0)
		if err != nil {
			return fmt.Errorf("discover broker: %w", err)
		}
		logger.Info("broker discovered", "instance", svc.InstanceName, "address", svc.String())
		cfg.Host, cfg.Port, cfg.Scheme = svc.DialHost(), svc.Port, svc.Scheme
		if svc.Path != "" {
			cfg.WSPath = svc.Path
		}
	}

	params, err := cfg.ConnectionParams()
	if err != nil {
		return err
	}

	tree, cmds, err := buildTree(cfg, logger)
	if err != nil {
		return err
	}
	defer cmds.Wait()

	plog, closeLog, err := protocolLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := agent.New(agent.Config{
		Params:         params,
		Tree:           tree,
		CallTimeout:    cfg.CallTimeout,
		RetryDelay:     cfg.RetryDelay,
		MaxRetryDelay:  cfg.MaxRetry,
		Logger:         logger,
		ProtocolLogger: plog,
		OnStateChange: func(oldState, newState connection.State) {
			logger.Debug("connection state", "target", "agent", "from", oldState, "to", newState)
		},
	})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// buildTree assembles the served tree: device methods and runCmd on the
// root, the export directory as "fs".
func buildTree(cfg Config, logger *slog.Logger) (*shvnode.NodesTree, *processors.CommandProcessor, error) {
	cmds := processors.NewCommandProcessor(processors.CommandConfig{
		Timeout: cfg.CmdTimeout,
		Logger:  logger,
	})
	root := shvnode.NewTreeNode("",
		processors.NewDeviceProcessor(processors.DefaultAppName, cfg.DeviceID),
		cmds,
	)
	if cfg.ExportDir != "" {
		fsProc, err := processors.NewExportDirProcessor(cfg.ExportDir)
		if err != nil {
			return nil, nil, err
		}
		if err := root.AddChild(shvnode.NewTreeNode("fs", fsProc)); err != nil {
			return nil, nil, err
		}
		logger.Info("exporting directory", "dir", cfg.ExportDir, "node", "fs")
	}
	tree := shvnode.NewNodesTree(root)
	tree.SetLogger(logger)
	return tree, cmds, nil
}

// protocolLogger routes protocol events to the rpcmsg target and, when
// configured, to a CBOR file.
func protocolLogger(cfg Config, logger *slog.Logger) (log.Logger, func(), error) {
	console := log.NewSlogAdapter(logger.With("target", "rpcmsg"))
	if cfg.ProtocolLog == "" {
		return console, func() {}, nil
	}
	file, err := log.NewFileLogger(cfg.ProtocolLog)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol log: %w", err)
	}
	logger.Info("writing protocol log", "path", cfg.ProtocolLog)
	return log.NewMultiLogger(console, file), func() { _ = file.Close() }, nil
}
