package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fetcharr/internal/catalog"
	"fetcharr/internal/config"
	"fetcharr/internal/search"
	"fetcharr/internal/services"
	"fetcharr/internal/testsupport"
	"fetcharr/internal/tracking"
)

type fakeProvider struct {
	name        string
	candidates  []catalog.Candidate
	wantedErr   error
	searchErr   map[int64]error
	searched    []int64
	nextCommand int64

	ctxQueue string
	ctxRunID string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Wanted(ctx context.Context, strategy catalog.Strategy) ([]catalog.Candidate, error) {
	f.captureContext(ctx)
	if f.wantedErr != nil {
		return nil, f.wantedErr
	}
	return f.candidates, nil
}

func (f *fakeProvider) Search(ctx context.Context, candidate catalog.Candidate) (int64, error) {
	f.captureContext(ctx)
	if err := f.searchErr[candidate.ItemID]; err != nil {
		return 0, err
	}
	f.searched = append(f.searched, candidate.ItemID)
	f.nextCommand++
	return f.nextCommand, nil
}

func (f *fakeProvider) captureContext(ctx context.Context) {
	if queue, ok := services.QueueFromContext(ctx); ok {
		f.ctxQueue = queue
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		f.ctxRunID = id
	}
}

type seasonCall struct {
	seriesID int64
	season   int
}

type fakeSeasonProvider struct {
	fakeProvider
	seasonErr   error
	seasonCalls []seasonCall
}

func (f *fakeSeasonProvider) SearchSeason(ctx context.Context, seriesID int64, season int) (int64, error) {
	f.seasonCalls = append(f.seasonCalls, seasonCall{seriesID: seriesID, season: season})
	if f.seasonErr != nil {
		return 0, f.seasonErr
	}
	f.nextCommand++
	return f.nextCommand, nil
}

func testQueue() config.Queue {
	return config.Queue{
		Name:                "missing",
		Instance:            "sonarr-main",
		Strategy:            "missing",
		CooldownMode:        "adaptive",
		MaxItemsPerRun:      10,
		IntervalHours:       24,
		SeasonPackThreshold: 3,
	}
}

func newStore(t *testing.T) *tracking.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func noSleep(ctx context.Context, d time.Duration) {}

func episode(seriesID, episodeID int64, season, ep int, airDate *time.Time) catalog.Candidate {
	return catalog.Candidate{
		Kind:       catalog.KindSeries,
		Label:      "Show",
		ExternalID: seriesID,
		ItemID:     episodeID,
		Season:     season,
		Episode:    ep,
		AirDate:    airDate,
	}
}

func TestRunDispatchesInRankedOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	old := now.AddDate(-2, 0, 0)

	provider := &fakeProvider{
		name: "sonarr-main",
		candidates: []catalog.Candidate{
			episode(1, 101, 1, 1, &old),
			episode(1, 102, 1, 2, &recent),
			episode(1, 103, 1, 3, &old),
		},
	}
	store := newStore(t)
	runner := search.NewRunner(store, provider, testQueue(), config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != tracking.RunCompleted {
		t.Fatalf("status = %v", run.Status)
	}
	if run.CandidatesConsidered != 3 || run.SearchesDispatched != 3 {
		t.Fatalf("counters = %+v", run)
	}

	// The recent episode outranks the two old ones; the old ones tie and
	// keep fetch order.
	want := []int64{102, 101, 103}
	if len(provider.searched) != len(want) {
		t.Fatalf("searched = %v", provider.searched)
	}
	for i, id := range want {
		if provider.searched[i] != id {
			t.Fatalf("searched = %v, want %v", provider.searched, want)
		}
	}

	records, err := store.RecordsForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("RecordsForRun failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0].ItemID != 102 || records[0].CommandID == nil {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[0].Outcome != tracking.OutcomeDispatched {
		t.Fatalf("initial outcome = %q", records[0].Outcome)
	}
}

func TestRunTruncatesToMaxItems(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{name: "sonarr-main"}
	for i := int64(0); i < 25; i++ {
		provider.candidates = append(provider.candidates, episode(1, 100+i, 1, int(i)+1, nil))
	}

	queue := testQueue()
	queue.MaxItemsPerRun = 5
	store := newStore(t)
	runner := search.NewRunner(store, provider, queue, config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.SearchesDispatched != 5 {
		t.Fatalf("dispatched = %d, want 5", run.SearchesDispatched)
	}
	if run.CandidatesConsidered != 25 {
		t.Fatalf("considered = %d, want 25", run.CandidatesConsidered)
	}
}

func TestRunHonorsExclusions(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name: "sonarr-main",
		candidates: []catalog.Candidate{
			episode(7, 701, 1, 1, nil),
			episode(8, 801, 1, 1, nil),
		},
	}
	queue := testQueue()
	queue.Exclude = []int64{7}

	store := newStore(t)
	runner := search.NewRunner(store, provider, queue, config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.SearchesDispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", run.SearchesDispatched)
	}
	if len(provider.searched) != 1 || provider.searched[0] != 801 {
		t.Fatalf("searched = %v", provider.searched)
	}
}

func TestRunSkipsCooldownCandidates(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	hot := episode(1, 101, 1, 1, nil)
	cold := episode(1, 102, 1, 2, nil)

	store := newStore(t)
	// Candidate 101 searched an hour ago sits inside its 24h unknown-band
	// window; 102 has never been searched.
	if err := store.RecordSearch(context.Background(), "sonarr-main", hot, now.Add(-time.Hour)); err != nil {
		t.Fatalf("RecordSearch failed: %v", err)
	}

	provider := &fakeProvider{name: "sonarr-main", candidates: []catalog.Candidate{hot, cold}}
	runner := search.NewRunner(store, provider, testQueue(), config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.SearchesDispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", run.SearchesDispatched)
	}
	if len(provider.searched) != 1 || provider.searched[0] != 102 {
		t.Fatalf("searched = %v", provider.searched)
	}
}

func TestRunContainsSingleDispatchFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name: "sonarr-main",
		candidates: []catalog.Candidate{
			episode(1, 101, 1, 1, nil),
			episode(1, 102, 1, 2, nil),
			episode(1, 103, 1, 3, nil),
		},
		searchErr: map[int64]error{102: errors.New("boom")},
	}
	store := newStore(t)
	runner := search.NewRunner(store, provider, testQueue(), config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != tracking.RunCompleted {
		t.Fatalf("status = %v, want completed", run.Status)
	}
	if run.SearchesDispatched != 2 {
		t.Fatalf("dispatched = %d, want 2", run.SearchesDispatched)
	}

	records, err := store.RecordsForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("RecordsForRun failed: %v", err)
	}
	var failed *tracking.DispatchRecord
	for _, rec := range records {
		if rec.ItemID == 102 {
			failed = rec
		}
	}
	if failed == nil || failed.Result != tracking.ResultFailed || failed.CommandID != nil {
		t.Fatalf("unexpected failed record: %+v", failed)
	}

	// The failed dispatch still counts as an attempt.
	item, err := store.ItemState(context.Background(), "sonarr-main", catalog.KindSeries, 1)
	if err != nil {
		t.Fatalf("ItemState failed: %v", err)
	}
	if item.SearchAttempts != 3 {
		t.Fatalf("series attempts = %d, want 3", item.SearchAttempts)
	}
}

func TestRunAnnotatesProviderContext(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name:       "sonarr-main",
		candidates: []catalog.Candidate{episode(1, 101, 1, 1, nil)},
	}
	store := newStore(t)
	runner := search.NewRunner(store, provider, testQueue(), config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if provider.ctxQueue != "missing" {
		t.Fatalf("provider saw queue %q, want %q", provider.ctxQueue, "missing")
	}
	if provider.ctxRunID != run.ID {
		t.Fatalf("provider saw run id %q, want %q", provider.ctxRunID, run.ID)
	}
}

func TestRunFailsWhenCatalogUnavailable(t *testing.T) {
	provider := &fakeProvider{name: "sonarr-main", wantedErr: errors.New("connection refused")}
	store := newStore(t)
	runner := search.NewRunner(store, provider, testQueue(), config.Default().Workflow, nil,
		search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected run failure")
	}
	if run == nil || run.Status != tracking.RunFailed {
		t.Fatalf("unexpected run: %+v", run)
	}

	fetched, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched.Status != tracking.RunFailed || fetched.ErrorMessage == "" {
		t.Fatalf("persisted run = %+v", fetched)
	}
}

func TestSeasonPackBundlesEpisodes(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeSeasonProvider{
		fakeProvider: fakeProvider{
			name: "sonarr-main",
			candidates: []catalog.Candidate{
				episode(1, 101, 1, 1, nil),
				episode(1, 102, 1, 2, nil),
				episode(1, 103, 1, 3, nil),
				episode(2, 201, 1, 1, nil),
			},
		},
	}
	queue := testQueue()
	queue.SeasonPackEnabled = true

	store := newStore(t)
	runner := search.NewRunner(store, provider, queue, config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)), search.WithSleep(noSleep))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(provider.seasonCalls) != 1 || provider.seasonCalls[0].seriesID != 1 {
		t.Fatalf("season calls = %+v", provider.seasonCalls)
	}
	// The bundled episodes are not individually dispatched; the series-2
	// episode below threshold is.
	if len(provider.searched) != 1 || provider.searched[0] != 201 {
		t.Fatalf("searched = %v", provider.searched)
	}
	if run.SearchesDispatched != 2 {
		t.Fatalf("dispatched = %d, want 2 (pack + episode)", run.SearchesDispatched)
	}

	// All four episodes carry an attempt.
	item, err := store.ItemState(context.Background(), "sonarr-main", catalog.KindSeries, 1)
	if err != nil {
		t.Fatalf("ItemState failed: %v", err)
	}
	if item.SearchAttempts != 3 {
		t.Fatalf("series 1 attempts = %d, want 3", item.SearchAttempts)
	}

	records, err := store.RecordsForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("RecordsForRun failed: %v", err)
	}
	var pack *tracking.DispatchRecord
	for _, rec := range records {
		if rec.Action == catalog.ActionSeasonSearch {
			pack = rec
		}
	}
	if pack == nil || pack.ExternalID != 1 || pack.Season != 1 {
		t.Fatalf("missing season pack record: %+v", records)
	}
}

func TestSeasonPackFailureFallsBackToEpisodes(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeSeasonProvider{
		fakeProvider: fakeProvider{
			name: "sonarr-main",
			candidates: []catalog.Candidate{
				episode(1, 101, 1, 1, nil),
				episode(1, 102, 1, 2, nil),
				episode(1, 103, 1, 3, nil),
			},
		},
		seasonErr: errors.New("season search rejected"),
	}
	queue := testQueue()
	queue.SeasonPackEnabled = true

	var slept []time.Duration
	store := newStore(t)
	runner := search.NewRunner(store, provider, queue, config.Default().Workflow, nil,
		search.WithClock(fixedClock(now)),
		search.WithSleep(func(ctx context.Context, d time.Duration) {
			slept = append(slept, d)
		}))

	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The failed bundle leaves every episode eligible for individual
	// dispatch within the same run, after a pacing delay.
	if len(provider.searched) != 3 {
		t.Fatalf("searched = %v, want all three episodes", provider.searched)
	}
	if run.SearchesDispatched != 3 {
		t.Fatalf("dispatched = %d, want 3", run.SearchesDispatched)
	}
	if len(slept) != 1 {
		t.Fatalf("pacing sleeps = %v, want one", slept)
	}
}
