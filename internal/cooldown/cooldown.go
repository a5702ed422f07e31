// Package cooldown decides whether a previously-searched candidate is
// eligible for another dispatch. Flat mode uses a fixed window; adaptive
// mode widens the window exponentially with consecutive unconfirmed
// searches.
package cooldown

import (
	"time"

	"fetcharr/internal/catalog"
	"fetcharr/internal/scoring"
	"fetcharr/internal/tracking"
)

// Mode selects the eligibility policy for a queue.
type Mode string

const (
	ModeAdaptive Mode = "adaptive"
	ModeFlat     Mode = "flat"
)

const (
	// maxBackoffHours caps the adaptive window at two weeks.
	maxBackoffHours = 336
	// maxBackoffShift caps the exponent so the doubling never overflows.
	maxBackoffShift = 8
	// defaultFlatHours backs a flat queue whose hours were left unset.
	// Config validation rejects that case; this is the evaluation-time floor.
	defaultFlatHours = 24
)

// adaptiveBaseHours maps the candidate's age band to a base window.
var adaptiveBaseHours = map[scoring.Band]int{
	scoring.BandDay:     6,
	scoring.BandWeek:    12,
	scoring.BandMonth:   24,
	scoring.BandYear:    72,
	scoring.BandOlder:   168,
	scoring.BandUnknown: 24,
}

// InCooldown reports whether the candidate is still inside its cooldown
// window at the given instant. A candidate never searched is always
// eligible. Boundary is strict: at the exact expiry instant the candidate
// becomes eligible.
func InCooldown(state tracking.SearchState, candidate catalog.Candidate, mode Mode, flatHours int, now time.Time) bool {
	if state.LastSearchedAt == nil {
		return false
	}

	var windowHours int
	switch mode {
	case ModeFlat:
		windowHours = flatHours
		if windowHours <= 0 {
			windowHours = defaultFlatHours
		}
	default:
		windowHours = adaptiveHours(state, candidate, now)
	}

	expiry := state.LastSearchedAt.Add(time.Duration(windowHours) * time.Hour)
	return now.Before(expiry)
}

// EffectiveHours exposes the adaptive window for diagnostics.
func EffectiveHours(state tracking.SearchState, candidate catalog.Candidate, now time.Time) int {
	return adaptiveHours(state, candidate, now)
}

func adaptiveHours(state tracking.SearchState, candidate catalog.Candidate, now time.Time) int {
	base := adaptiveBaseHours[scoring.AgeBand(candidate.AirDate, now)]

	shift := state.ConsecutiveFailures()
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	hours := base << shift
	if hours > maxBackoffHours {
		hours = maxBackoffHours
	}
	return hours
}
