// Package log provides structured protocol logging for the Midea LAN client.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog/zerolog) - protocol capture
// provides a complete machine-readable event trace for debugging appliances
// whose firmware behavior is otherwise undocumented.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/midea/device.mlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/midea/device.mlog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw 8370 frame bytes (FrameEvent)
//   - Wire: Decoded appliance messages (MessageEvent)
//   - Session: Connection state changes (StateChangeEvent)
//
// Handshake progress and errors have dedicated event types.
//
// # File Format
//
// Log files use CBOR encoding with .mlog extension.
package log
