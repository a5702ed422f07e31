package arr

import "strings"

// CommandState is the lifecycle state of an instance-side command.
type CommandState string

const (
	CommandQueued    CommandState = "queued"
	CommandStarted   CommandState = "started"
	CommandCompleted CommandState = "completed"
	CommandFailed    CommandState = "failed"
	CommandAborted   CommandState = "aborted"
	CommandUnknown   CommandState = "unknown"
)

// ParseCommandState normalizes a raw status string from the command API.
func ParseCommandState(raw string) CommandState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued":
		return CommandQueued
	case "started", "running":
		return CommandStarted
	case "completed":
		return CommandCompleted
	case "failed":
		return CommandFailed
	case "aborted", "cancelled":
		return CommandAborted
	default:
		return CommandUnknown
	}
}

// Completed reports whether the command finished successfully.
func (s CommandState) Completed() bool {
	return s == CommandCompleted
}

// CommandResponse is the envelope returned by POST /api/v3/command and
// GET /api/v3/command/{id}.
type CommandResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// State returns the normalized command state.
func (r CommandResponse) State() CommandState {
	return ParseCommandState(r.Status)
}
