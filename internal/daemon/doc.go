// Package daemon wires the long-running fetcharr process: single-instance
// locking, per-queue scheduling loops, delayed feedback checks, and the
// read-only status API.
package daemon
