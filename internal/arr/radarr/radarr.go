// Package radarr implements the Radarr v3 client: wanted-movie listing,
// movie search commands, command status lookup, and movie file existence
// checks.
package radarr

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"fetcharr/internal/arr"
	"fetcharr/internal/catalog"
	"fetcharr/internal/config"
)

// Client talks to one Radarr instance.
type Client struct {
	api *arr.Client
}

// New builds a client for a configured Radarr instance.
func New(inst config.Instance, workflow config.Workflow, logger *slog.Logger) *Client {
	return &Client{api: arr.NewClient(inst, workflow, logger)}
}

// NewWithAPI wraps an existing low-level client.
func NewWithAPI(api *arr.Client) *Client {
	return &Client{api: api}
}

// Name returns the instance name.
func (c *Client) Name() string {
	return c.api.Name()
}

type wantedMovie struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Year            int    `json:"year"`
	DigitalRelease  string `json:"digitalRelease"`
	PhysicalRelease string `json:"physicalRelease"`
	InCinemas       string `json:"inCinemas"`
}

// Wanted returns the full candidate list for a strategy.
func (c *Client) Wanted(ctx context.Context, strategy catalog.Strategy) ([]catalog.Candidate, error) {
	query := url.Values{}
	query.Set("sortKey", "movies.year")
	query.Set("sortDirection", "descending")
	query.Set("monitored", "true")

	records, err := arr.FetchAll[wantedMovie](ctx, c.api, arr.WantedPath(strategy), query)
	if err != nil {
		return nil, err
	}

	now := c.api.Now()
	candidates := make([]catalog.Candidate, 0, len(records))
	for _, rec := range records {
		airDate := releaseDate(rec)
		if strategy == catalog.StrategyRecent && !arr.Recent(airDate, now) {
			continue
		}
		candidates = append(candidates, catalog.Candidate{
			Kind:       catalog.KindMovie,
			Label:      movieLabel(rec),
			ExternalID: rec.ID,
			ItemID:     rec.ID,
			AirDate:    airDate,
		})
	}
	return candidates, nil
}

// Search submits a MoviesSearch command for one movie and returns the
// command id.
func (c *Client) Search(ctx context.Context, candidate catalog.Candidate) (int64, error) {
	body := map[string]any{
		"name":     string(catalog.ActionMovieSearch),
		"movieIds": []int64{candidate.ItemID},
	}
	var resp arr.CommandResponse
	if err := c.api.PostJSON(ctx, "/api/v3/command", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// CommandState polls the state of a previously submitted command.
func (c *Client) CommandState(ctx context.Context, commandID int64) (arr.CommandState, error) {
	var resp arr.CommandResponse
	if err := c.api.GetJSON(ctx, fmt.Sprintf("/api/v3/command/%d", commandID), nil, &resp); err != nil {
		return arr.CommandUnknown, err
	}
	return resp.State(), nil
}

// HasContent reports whether the movie now has a file on disk.
func (c *Client) HasContent(ctx context.Context, candidate catalog.Candidate) (bool, error) {
	var movie struct {
		ID      int64 `json:"id"`
		HasFile bool  `json:"hasFile"`
	}
	if err := c.api.GetJSON(ctx, fmt.Sprintf("/api/v3/movie/%d", candidate.ItemID), nil, &movie); err != nil {
		return false, err
	}
	return movie.HasFile, nil
}

// releaseDate picks the earliest meaningful availability date the record
// exposes, preferring digital over physical over theatrical.
func releaseDate(rec wantedMovie) *time.Time {
	for _, raw := range []string{rec.DigitalRelease, rec.PhysicalRelease, rec.InCinemas} {
		if parsed := arr.ParseDate(raw); parsed != nil {
			return parsed
		}
	}
	return nil
}

func movieLabel(rec wantedMovie) string {
	if rec.Year > 0 {
		return fmt.Sprintf("%s (%d)", rec.Title, rec.Year)
	}
	return rec.Title
}
