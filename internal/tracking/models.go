package tracking

import (
	"time"

	"fetcharr/internal/catalog"
)

// RunStatus describes the lifecycle of one queue run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Result records whether a dispatch reached the instance.
type Result string

const (
	ResultSent   Result = "sent"
	ResultFailed Result = "failed"
)

// Outcome tracks what the feedback checker concluded about a dispatch.
// Records start as OutcomeDispatched and transition exactly once.
type Outcome string

const (
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeUnknown      Outcome = "unknown"
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeNotConfirmed Outcome = "not-confirmed"
)

// SearchState is the tracked history for one candidate, composed from the
// item row and, for episodes, its sub-item row.
type SearchState struct {
	SearchAttempts int
	LastSearchedAt *time.Time
	GrabsConfirmed int
	LastGrabAt     *time.Time
}

// ConsecutiveFailures approximates the failure streak as attempts that have
// not produced a grab. Clamped so historical anomalies never go negative.
func (s SearchState) ConsecutiveFailures() int {
	failures := s.SearchAttempts - s.GrabsConfirmed
	if failures < 0 {
		return 0
	}
	return failures
}

// GrabRate returns the fraction of attempts that ended in a confirmed grab.
// Never-searched items report zero.
func (s SearchState) GrabRate() float64 {
	if s.SearchAttempts == 0 {
		return 0
	}
	return float64(s.GrabsConfirmed) / float64(s.SearchAttempts)
}

// Run is one execution of a queue.
type Run struct {
	ID                   string
	QueueName            string
	Instance             string
	Strategy             catalog.Strategy
	Status               RunStatus
	StartedAt            time.Time
	FinishedAt           *time.Time
	CandidatesConsidered int
	SearchesDispatched   int
	ErrorMessage         string
}

// DispatchRecord is one command submitted (or attempted) during a run.
type DispatchRecord struct {
	ID    int64
	RunID string
	// Seq preserves dispatch order within the run.
	Seq    int
	Label  string
	Action catalog.ActionKind

	ExternalID int64
	ItemID     int64
	Season     int
	Episode    int

	Score  float64
	Reason string

	// CommandID is the instance-side command id when the submission
	// succeeded; nil when it never reached the instance.
	CommandID *int64
	Result    Result
	Outcome   Outcome
	CreatedAt time.Time
}

// StateSet holds the batch-loaded states for one instance's candidates.
type StateSet struct {
	items map[itemKey]itemState
	subs  map[subKey]subState
}

type itemKey struct {
	kind       catalog.ContentKind
	externalID int64
}

type subKey struct {
	itemID  int64
	season  int
	episode int
}

type itemState struct {
	rowID          int64
	attempts       int
	lastSearchedAt *time.Time
	grabsConfirmed int
	lastGrabAt     *time.Time
}

type subState struct {
	attempts       int
	lastSearchedAt *time.Time
}

// For composes the search state for a candidate. Episodes take their attempt
// count and recency from the per-episode row and grab history from the parent
// series; movies read the item row directly. Unknown candidates yield the
// zero state.
func (set StateSet) For(c catalog.Candidate) SearchState {
	item, ok := set.items[itemKey{kind: c.Kind, externalID: c.ExternalID}]
	if !ok {
		return SearchState{}
	}

	state := SearchState{
		SearchAttempts: item.attempts,
		LastSearchedAt: item.lastSearchedAt,
		GrabsConfirmed: item.grabsConfirmed,
		LastGrabAt:     item.lastGrabAt,
	}
	if !c.IsEpisode() {
		return state
	}

	sub, ok := set.subs[subKey{itemID: item.rowID, season: c.Season, episode: c.Episode}]
	if ok {
		state.SearchAttempts = sub.attempts
		state.LastSearchedAt = sub.lastSearchedAt
	} else {
		state.SearchAttempts = 0
		state.LastSearchedAt = nil
	}
	if state.GrabsConfirmed > state.SearchAttempts {
		state.GrabsConfirmed = state.SearchAttempts
	}
	return state
}
