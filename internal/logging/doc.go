// Package logging provides structured logging for the vidaa-control tool.
//
// Logging is silent by default so that CLI output stays clean. Verbosity is
// controlled by the VIDAA_LOG_LEVEL environment variable or an explicit call
// to Initialize:
//
//	VIDAA_LOG_LEVEL=debug vidaa-remote key KEY_HOME
//
// Valid levels are "debug", "info", "warn" and "error". When no level is
// configured the package installs a no-op logger, so library code can log
// unconditionally without checking a verbosity flag first.
//
// The package wraps go.uber.org/zap and exposes package-level helpers
// (Info, Debug, Warn, Error) plus protocol-specific helpers for logging
// MQTT traffic and raw payload bytes.
package logging
