package scoring

import (
	"fmt"
	"math"
	"time"

	"fetcharr/internal/catalog"
	"fetcharr/internal/tracking"
)

// Band buckets a candidate's age. The cooldown policy reuses the same bands
// with its own hour table.
type Band int

const (
	BandDay Band = iota
	BandWeek
	BandMonth
	BandYear
	BandOlder
	BandUnknown
)

// AgeBand classifies an air date relative to now. Boundaries are strict: a
// candidate exactly 24 hours old falls in the week band, not the day band.
func AgeBand(airDate *time.Time, now time.Time) Band {
	if airDate == nil {
		return BandUnknown
	}
	age := now.Sub(*airDate)
	switch {
	case age < 24*time.Hour:
		return BandDay
	case age < 7*24*time.Hour:
		return BandWeek
	case age < 30*24*time.Hour:
		return BandMonth
	case age < 365*24*time.Hour:
		return BandYear
	default:
		return BandOlder
	}
}

// Weights biases the three factors for one strategy.
type Weights struct {
	Recency   float64
	Attempts  float64
	Staleness float64
}

var strategyWeights = map[catalog.Strategy]Weights{
	catalog.StrategyMissing: {Recency: 1.5, Attempts: 0.8, Staleness: 0.7},
	catalog.StrategyCutoff:  {Recency: 0.7, Attempts: 0.8, Staleness: 1.5},
	catalog.StrategyRecent:  {Recency: 2.0, Attempts: 0.5, Staleness: 0.5},
}

// neutralWeights backs unknown strategies: unweighted factors against a flat
// ceiling of 100.
var neutralWeights = Weights{Recency: 1, Attempts: 1, Staleness: 1}

const (
	recencyMax   = 40.0
	attemptsMax  = 30.0
	stalenessMax = 30.0
)

var recencyByBand = map[Band]float64{
	BandDay:     40,
	BandWeek:    30,
	BandMonth:   20,
	BandYear:    10,
	BandOlder:   5,
	BandUnknown: 15,
}

// Score computes the priority score and dominant reason for a candidate.
// Pure: the only clock it sees is the now argument.
func Score(candidate catalog.Candidate, state tracking.SearchState, strategy catalog.Strategy, now time.Time) (float64, string) {
	recency := recencyByBand[AgeBand(candidate.AirDate, now)]
	attempts := attemptsFactor(state.SearchAttempts)
	staleness := stalenessFactor(state.LastSearchedAt, now)

	weights, known := strategyWeights[strategy]
	maxPossible := 100.0
	if !known {
		weights = neutralWeights
	} else {
		maxPossible = recencyMax*weights.Recency + attemptsMax*weights.Attempts + stalenessMax*weights.Staleness
	}

	weighted := recency*weights.Recency + attempts*weights.Attempts + staleness*weights.Staleness
	score := math.Min(100, weighted/maxPossible*100)
	score = math.Round(score*10) / 10

	return score, reason(recency, attempts, staleness, weights, state)
}

func attemptsFactor(attempts int) float64 {
	switch {
	case attempts == 0:
		return 30
	case attempts <= 5:
		return 25
	case attempts <= 10:
		return 15
	case attempts <= 20:
		return 8
	default:
		return 2
	}
}

func stalenessFactor(lastSearched *time.Time, now time.Time) float64 {
	if lastSearched == nil {
		return 30
	}
	since := now.Sub(*lastSearched)
	switch {
	case since > 7*24*time.Hour:
		return 25
	case since > 3*24*time.Hour:
		return 20
	case since > 24*time.Hour:
		return 15
	default:
		return 5
	}
}

// reason picks the dominant explanation in fixed priority order. A rule only
// fires when its factor carries weight for the strategy.
func reason(recency, attempts, staleness float64, weights Weights, state tracking.SearchState) string {
	if weights.Recency > 0 && recency >= attempts && recency >= staleness {
		return "recently aired"
	}
	if weights.Attempts > 0 && attempts == attemptsMax {
		return "never searched"
	}
	if weights.Attempts > 0 && (attempts == 15 || attempts == 8) {
		return fmt.Sprintf("searched %d times, low success", state.SearchAttempts)
	}
	if weights.Staleness > 0 && staleness >= 25 {
		if state.SearchAttempts == 0 {
			return "new to library"
		}
		return "not searched recently"
	}
	return "default priority"
}
