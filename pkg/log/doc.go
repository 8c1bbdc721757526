// Package log provides structured protocol capture for the agent.
//
// It defines the Logger interface and Event types for recording what
// crosses the broker connection at multiple layers (transport, wire,
// session). It is separate from operational logging (slog): protocol
// capture is a machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/shvagent/agent.shvlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded requests, responses and signals (MessageEvent)
//   - Session: connection and login state (StateChangeEvent) and
//     heartbeat outcomes (HeartbeatEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events, conventionally with the
// .shvlog extension. The shvlog CLI views and summarizes them.
package log
