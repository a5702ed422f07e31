// Package arr contains the shared HTTP plumbing for Sonarr and Radarr v3
// API clients: authenticated JSON requests, per-instance rate limiting, and
// error classification. The concrete clients live in the sonarr and radarr
// subpackages.
package arr
