// Package logging builds the application slog logger and standardizes the
// structured field keys used across the daemon, search pipeline, and
// feedback checker. Two output formats are supported: a compact key=value
// console format and JSON for log shippers.
package logging
