// Package tracking persists search history, run records, and dispatch
// outcomes in SQLite. It is the single source of truth the scoring engine,
// cooldown policy, and feedback checker read from and write to.
package tracking
