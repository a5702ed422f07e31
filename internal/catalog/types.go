package catalog

import (
	"strings"
	"time"
)

// ContentKind distinguishes the two tracked media shapes.
type ContentKind string

const (
	KindSeries ContentKind = "series"
	KindMovie  ContentKind = "movie"
)

// Strategy selects which wanted list a queue works from and how candidates
// are weighted during scoring.
type Strategy string

const (
	StrategyMissing Strategy = "missing"
	StrategyCutoff  Strategy = "cutoff"
	StrategyRecent  Strategy = "recent"
)

var strategySet = map[Strategy]struct{}{
	StrategyMissing: {},
	StrategyCutoff:  {},
	StrategyRecent:  {},
}

// ParseStrategy converts a string into a known Strategy.
func ParseStrategy(value string) (Strategy, bool) {
	normalized := Strategy(strings.ToLower(strings.TrimSpace(value)))
	_, ok := strategySet[normalized]
	return normalized, ok
}

// ActionKind identifies the command submitted to a dispatcher for a
// candidate or group of candidates.
type ActionKind string

const (
	ActionEpisodeSearch ActionKind = "EpisodeSearch"
	ActionSeasonSearch  ActionKind = "SeasonSearch"
	ActionMovieSearch   ActionKind = "MoviesSearch"
)

// IsSearch reports whether the action kind is one whose outcome the
// feedback checker can verify against the library.
func (k ActionKind) IsSearch() bool {
	switch k {
	case ActionEpisodeSearch, ActionMovieSearch:
		return true
	default:
		return false
	}
}

// Candidate is one unit of work surfaced by a wanted-list fetch: an episode
// for Sonarr instances, a movie for Radarr instances.
type Candidate struct {
	Kind  ContentKind
	Label string

	// ExternalID is the series id (Sonarr) or movie id (Radarr) that keys
	// the tracked item. ItemID is the episode id for episode candidates and
	// equals ExternalID for movies.
	ExternalID int64
	ItemID     int64

	// Season and Episode are set for episode candidates and correlate
	// sub-item tracking and season-pack grouping.
	Season  int
	Episode int

	// AirDate is the air or release timestamp when the catalog exposes one.
	// A nil value degrades to the neutral recency band during scoring.
	AirDate *time.Time
}

// IsEpisode reports whether the candidate is a per-episode unit.
func (c Candidate) IsEpisode() bool {
	return c.Kind == KindSeries
}
