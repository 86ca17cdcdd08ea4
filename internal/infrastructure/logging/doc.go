// Package logging provides structured logging for powerlog-ingest.
//
// This package wraps Go's standard log/slog package so that every
// component logs with the same handler and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for interactive runs
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("run finished", "files", 12)
//	logger.Warn("invalid value", "file", name, "line", 42)
//
// Never log the InfluxDB token.
package logging
