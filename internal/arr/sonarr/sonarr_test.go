package sonarr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fetcharr/internal/arr"
	"fetcharr/internal/arr/sonarr"
	"fetcharr/internal/catalog"
)

func newClient(t *testing.T, handler http.Handler, opts ...arr.ClientOption) *sonarr.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := arr.NewClientWithDoer("sonarr-main", server.URL, "key", server.Client(), nil, opts...)
	return sonarr.NewWithAPI(api)
}

func TestWantedWalksAllPages(t *testing.T) {
	records := make([]map[string]any, 0, 150)
	for i := 0; i < 150; i++ {
		records = append(records, map[string]any{
			"id":            int64(1000 + i),
			"seriesId":      int64(10),
			"seasonNumber":  1,
			"episodeNumber": i + 1,
			"airDateUtc":    "2025-05-01T20:00:00Z",
			"series":        map[string]any{"title": "Show"},
		})
	}

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/wanted/missing" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		start := (page - 1) * size
		end := start + size
		if start > len(records) {
			start = len(records)
		}
		if end > len(records) {
			end = len(records)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page":         page,
			"pageSize":     size,
			"totalRecords": len(records),
			"records":      records[start:end],
		})
	}))

	candidates, err := client.Wanted(context.Background(), catalog.StrategyMissing)
	if err != nil {
		t.Fatalf("Wanted failed: %v", err)
	}
	if len(candidates) != 150 {
		t.Fatalf("candidates = %d, want 150", len(candidates))
	}

	first := candidates[0]
	if first.Kind != catalog.KindSeries || first.ExternalID != 10 || first.ItemID != 1000 {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Label != "Show S01E01" {
		t.Fatalf("label = %q", first.Label)
	}
	if first.AirDate == nil {
		t.Fatal("expected parsed air date")
	}
}

func TestWantedToleratesMalformedAirDate(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page":         1,
			"pageSize":     100,
			"totalRecords": 1,
			"records": []map[string]any{{
				"id":            int64(1),
				"seriesId":      int64(2),
				"seasonNumber":  3,
				"episodeNumber": 4,
				"airDateUtc":    "not-a-date",
			}},
		})
	}))

	candidates, err := client.Wanted(context.Background(), catalog.StrategyMissing)
	if err != nil {
		t.Fatalf("Wanted failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].AirDate != nil {
		t.Fatal("malformed air date should degrade to nil")
	}
}

func TestSearchSubmitsEpisodeCommand(t *testing.T) {
	var body map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/command" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 77, "status": "queued"})
	}))

	commandID, err := client.Search(context.Background(), catalog.Candidate{ItemID: 42})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if commandID != 77 {
		t.Fatalf("commandID = %d, want 77", commandID)
	}
	if body["name"] != "EpisodeSearch" {
		t.Fatalf("command name = %v", body["name"])
	}
	ids, ok := body["episodeIds"].([]any)
	if !ok || len(ids) != 1 || ids[0].(float64) != 42 {
		t.Fatalf("episodeIds = %v", body["episodeIds"])
	}
}

func TestSearchSeasonSubmitsSeasonCommand(t *testing.T) {
	var body map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 88, "status": "queued"})
	}))

	commandID, err := client.SearchSeason(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("SearchSeason failed: %v", err)
	}
	if commandID != 88 {
		t.Fatalf("commandID = %d, want 88", commandID)
	}
	if body["name"] != "SeasonSearch" {
		t.Fatalf("command name = %v", body["name"])
	}
	if body["seriesId"].(float64) != 10 || body["seasonNumber"].(float64) != 2 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCommandStateAndExistence(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/command/77":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 77, "status": "completed"})
		case "/api/v3/episode/42":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "hasFile": true})
		default:
			http.NotFound(w, r)
		}
	}))

	state, err := client.CommandState(context.Background(), 77)
	if err != nil {
		t.Fatalf("CommandState failed: %v", err)
	}
	if !state.Completed() {
		t.Fatalf("state = %v, want completed", state)
	}

	has, err := client.HasContent(context.Background(), catalog.Candidate{ItemID: 42})
	if err != nil {
		t.Fatalf("HasContent failed: %v", err)
	}
	if !has {
		t.Fatal("expected hasFile true")
	}
}

func TestWantedRecentFiltersOldContent(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page":         1,
			"pageSize":     100,
			"totalRecords": 3,
			"records": []map[string]any{
				{
					"id": int64(1), "seriesId": int64(2),
					"seasonNumber": 1, "episodeNumber": 1,
					"airDateUtc": "2000-01-01T00:00:00Z",
				},
				{
					"id": int64(2), "seriesId": int64(2),
					"seasonNumber": 1, "episodeNumber": 2,
					"airDateUtc": "2025-06-01T00:00:00Z",
				},
				{
					// 31 days old: just outside the window.
					"id": int64(3), "seriesId": int64(2),
					"seasonNumber": 1, "episodeNumber": 3,
					"airDateUtc": "2025-05-10T12:00:00Z",
				},
			},
		})
	}), arr.WithClock(func() time.Time { return now }))

	candidates, err := client.Wanted(context.Background(), catalog.StrategyRecent)
	if err != nil {
		t.Fatalf("Wanted failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ItemID != 2 {
		t.Fatalf("recent filter kept %+v", candidates)
	}
}
