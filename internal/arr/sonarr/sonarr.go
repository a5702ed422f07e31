// Package sonarr implements the Sonarr v3 client: wanted-episode listing,
// episode and season search commands, command status lookup, and episode
// file existence checks.
package sonarr

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"fetcharr/internal/arr"
	"fetcharr/internal/catalog"
	"fetcharr/internal/config"
)

// Client talks to one Sonarr instance.
type Client struct {
	api *arr.Client
}

// New builds a client for a configured Sonarr instance.
func New(inst config.Instance, workflow config.Workflow, logger *slog.Logger) *Client {
	return &Client{api: arr.NewClient(inst, workflow, logger)}
}

// NewWithAPI wraps an existing low-level client. Tests use this with
// httptest-backed doers.
func NewWithAPI(api *arr.Client) *Client {
	return &Client{api: api}
}

// Name returns the instance name.
func (c *Client) Name() string {
	return c.api.Name()
}

type wantedEpisode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	AirDateUTC    string `json:"airDateUtc"`
	Series        struct {
		Title string `json:"title"`
	} `json:"series"`
}

// Wanted returns the full candidate list for a strategy, walking every page
// of the wanted endpoint.
func (c *Client) Wanted(ctx context.Context, strategy catalog.Strategy) ([]catalog.Candidate, error) {
	query := url.Values{}
	query.Set("includeSeries", "true")
	query.Set("sortKey", "airDateUtc")
	query.Set("sortDirection", "descending")
	query.Set("monitored", "true")

	records, err := arr.FetchAll[wantedEpisode](ctx, c.api, arr.WantedPath(strategy), query)
	if err != nil {
		return nil, err
	}

	now := c.api.Now()
	candidates := make([]catalog.Candidate, 0, len(records))
	for _, rec := range records {
		airDate := arr.ParseDate(rec.AirDateUTC)
		if strategy == catalog.StrategyRecent && !arr.Recent(airDate, now) {
			continue
		}
		candidates = append(candidates, catalog.Candidate{
			Kind:       catalog.KindSeries,
			Label:      episodeLabel(rec),
			ExternalID: rec.SeriesID,
			ItemID:     rec.ID,
			Season:     rec.SeasonNumber,
			Episode:    rec.EpisodeNumber,
			AirDate:    airDate,
		})
	}
	return candidates, nil
}

// Search submits an EpisodeSearch command for one episode and returns the
// command id.
func (c *Client) Search(ctx context.Context, candidate catalog.Candidate) (int64, error) {
	body := map[string]any{
		"name":       string(catalog.ActionEpisodeSearch),
		"episodeIds": []int64{candidate.ItemID},
	}
	var resp arr.CommandResponse
	if err := c.api.PostJSON(ctx, "/api/v3/command", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// SearchSeason submits a SeasonSearch command covering a whole season.
func (c *Client) SearchSeason(ctx context.Context, seriesID int64, season int) (int64, error) {
	body := map[string]any{
		"name":         string(catalog.ActionSeasonSearch),
		"seriesId":     seriesID,
		"seasonNumber": season,
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

// HasContent reports whether the episode now has a file on disk.
func (c *Client) HasContent(ctx context.Context, candidate catalog.Candidate) (bool, error) {
	var episode struct {
		ID      int64 `json:"id"`
		HasFile bool  `json:"hasFile"`
	}
	if err := c.api.GetJSON(ctx, fmt.Sprintf("/api/v3/episode/%d", candidate.ItemID), nil, &episode); err != nil {
		return false, err
	}
	return episode.HasFile, nil
}

func episodeLabel(rec wantedEpisode) string {
	series := rec.Series.Title
	if series == "" {
		series = fmt.Sprintf("series %d", rec.SeriesID)
	}
	return fmt.Sprintf("%s S%02dE%02d", series, rec.SeasonNumber, rec.EpisodeNumber)
}
