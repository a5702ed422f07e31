// Package services provides shared plumbing for collaborator-facing code:
// sentinel error markers used to classify failures as run-fatal or
// per-candidate, and context helpers that carry run correlation fields
// into structured logs.
package services
