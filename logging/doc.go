// Package logging provides a minimal logging interface and adapters for agentloop.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, planning rounds and action executors use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a zap SugaredLogger
//   - TurnLogger adding turn identifiers and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	eng := engine.New(catalog, router, runners, store, func(o *engine.Options) { o.Logger = logger })
package logging
