// Package catalog defines the shared domain types exchanged between the
// search pipeline and the Sonarr/Radarr collaborator clients: candidates
// surfaced by a wanted-list fetch, search strategies, and the action kinds
// recorded against a run.
package catalog
