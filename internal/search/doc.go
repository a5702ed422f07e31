// Package search implements the dispatch orchestrator: one run fetches the
// wanted list for a queue, scores and ranks every candidate, filters by
// exclusions and cooldown, truncates to the batch limit, and dispatches
// searches in ranked order while recording attempts and dispatch records.
package search
