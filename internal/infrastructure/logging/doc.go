// Package logging provides structured logging for FluxHaus Core.
//
// It wraps log/slog so every component logs through the same handler with
// the same default fields (service, version, site).
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log passwords, tokens or the booking payload. Use Redact when a
// credential has to be identified in a log line.
package logging
