package arr

import (
	"strings"
	"time"

	"fetcharr/internal/catalog"
)

// RecentWindow bounds the "recent" strategy to content aired in the last
// thirty days.
const RecentWindow = 30 * 24 * time.Hour

// WantedPath maps a strategy to its wanted endpoint. The recent strategy
// reads the missing list and is narrowed client-side by air date.
func WantedPath(strategy catalog.Strategy) string {
	if strategy == catalog.StrategyCutoff {
		return "/api/v3/wanted/cutoff"
	}
	return "/api/v3/wanted/missing"
}

// ParseDate leniently parses the timestamp formats the v3 APIs emit. A
// malformed or empty value yields nil rather than an error so scoring can
// degrade to its neutral recency band.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Recent reports whether an air date falls inside the recent window.
func Recent(airDate *time.Time, now time.Time) bool {
	if airDate == nil {
		return false
	}
	return now.Sub(*airDate) < RecentWindow
}
