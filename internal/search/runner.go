package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fetcharr/internal/catalog"
	"fetcharr/internal/config"
	"fetcharr/internal/cooldown"
	"fetcharr/internal/logging"
	"fetcharr/internal/scoring"
	"fetcharr/internal/services"
	"fetcharr/internal/tracking"
)

// Provider is the catalog and dispatch surface of one instance.
type Provider interface {
	Name() string
	Wanted(ctx context.Context, strategy catalog.Strategy) ([]catalog.Candidate, error)
	Search(ctx context.Context, candidate catalog.Candidate) (int64, error)
}

// SeasonSearcher is implemented by providers that can search a whole season
// with one command.
type SeasonSearcher interface {
	SearchSeason(ctx context.Context, seriesID int64, season int) (int64, error)
}

// Runner executes runs for one queue.
type Runner struct {
	store    *tracking.Store
	provider Provider
	queue    config.Queue
	strategy catalog.Strategy
	pacing   time.Duration
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock injects the time source used for scoring and cooldown.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithSleep injects the pacing sleep. Tests use this to skip real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// NewRunner builds a runner for a queue backed by a provider and store.
func NewRunner(store *tracking.Store, provider Provider, queue config.Queue, workflow config.Workflow, logger *slog.Logger, opts ...Option) *Runner {
	logger = logging.NewComponentLogger(logger, "search")
	strategy, _ := catalog.ParseStrategy(queue.Strategy)
	r := &Runner{
		store:    store,
		provider: provider,
		queue:    queue,
		strategy: strategy,
		pacing:   time.Duration(workflow.DispatchPacingSeconds) * time.Second,
		logger:   logger.With(logging.String(logging.FieldQueue, queue.Name)),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	candidate catalog.Candidate
	score     float64
	reason    string
}

// Run executes one complete pipeline pass for the queue. Candidate-scoped
// failures are recorded and the batch continues; only an unreachable catalog
// or store fails the whole run.
func (r *Runner) Run(ctx context.Context) (*tracking.Run, error) {
	run := &tracking.Run{
		QueueName: r.queue.Name,
		Instance:  r.provider.Name(),
		Strategy:  r.strategy,
	}
	if err := r.store.StartRun(ctx, run); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "tracking", "start run", err)
	}

	// Annotate the context so collaborator calls log with the queue and run.
	ctx = services.WithQueue(ctx, r.queue.Name)
	ctx = services.WithRunID(ctx, run.ID)

	logger := r.logger.With(logging.String(logging.FieldRunID, run.ID))
	logger.Info("run started", logging.String(logging.FieldStrategy, string(r.strategy)))

	selected, considered, err := r.selectBatch(ctx, logger)
	if err != nil {
		return r.finish(ctx, run, considered, 0, err)
	}

	dispatched, err := r.dispatch(ctx, logger, run, selected)
	if err != nil {
		return r.finish(ctx, run, considered, dispatched, err)
	}

	return r.finish(ctx, run, considered, dispatched, nil)
}

// selectBatch runs the scoring and filtering stages, returning the ranked,
// truncated batch plus the count of candidates considered.
func (r *Runner) selectBatch(ctx context.Context, logger *slog.Logger) ([]scored, int, error) {
	candidates, err := r.provider.Wanted(ctx, r.strategy)
	if err != nil {
		if !services.FailsRun(err) {
			err = services.Wrap(services.ErrUnavailable, r.provider.Name(), "fetch candidates", err)
		}
		return nil, 0, err
	}
	considered := len(candidates)
	logger.Info("candidates fetched", logging.Int("count", considered))

	states, err := r.store.StatesForCandidates(ctx, r.provider.Name(), candidates)
	if err != nil {
		return nil, considered, services.Wrap(services.ErrUnavailable, "tracking", "load states", err)
	}

	now := r.now().UTC()
	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		score, reason := scoring.Score(candidate, states.For(candidate), r.strategy, now)
		ranked = append(ranked, scored{candidate: candidate, score: score, reason: reason})
	}

	// Stable sort: ties keep fetch order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	excluded := make(map[int64]struct{}, len(r.queue.Exclude))
	for _, id := range r.queue.Exclude {
		excluded[id] = struct{}{}
	}

	mode := cooldown.Mode(r.queue.CooldownMode)
	selected := make([]scored, 0, r.queue.MaxItemsPerRun)
	for _, entry := range ranked {
		if _, skip := excluded[entry.candidate.ExternalID]; skip {
			continue
		}
		if cooldown.InCooldown(states.For(entry.candidate), entry.candidate, mode, r.queue.CooldownHours, now) {
			continue
		}
		selected = append(selected, entry)
		if len(selected) == r.queue.MaxItemsPerRun {
			break
		}
	}

	logger.Info("batch selected",
		logging.Int("selected", len(selected)),
		logging.Int("considered", considered))
	return selected, considered, nil
}

// dispatch sends the batch in ranked order, trying season packs first when
// enabled, and returns the number of successful submissions.
func (r *Runner) dispatch(ctx context.Context, logger *slog.Logger, run *tracking.Run, selected []scored) (int, error) {
	seq := 0
	dispatched := 0

	handled, bulkDispatched, bulkFailed, err := r.dispatchSeasonPacks(ctx, logger, run, selected, &seq)
	if err != nil {
		return dispatched, err
	}
	dispatched += bulkDispatched

	if bulkFailed && r.pacing > 0 {
		r.sleep(ctx, r.pacing)
	}

	for _, entry := range selected {
		if ctx.Err() != nil {
			return dispatched, services.Wrap(services.ErrTransient, "run", "cancelled", ctx.Err())
		}
		if _, done := handled[entry.candidate.ItemID]; done {
			continue
		}

		commandID, dispatchErr := r.provider.Search(ctx, entry.candidate)

		// The attempt is recorded whether or not the submission succeeded,
		// so cooldown pressure reflects every dispatch try.
		if err := r.store.RecordSearch(ctx, r.provider.Name(), entry.candidate, r.now().UTC()); err != nil {
			return dispatched, services.Wrap(services.ErrUnavailable, "tracking", "record search", err)
		}

		rec := &tracking.DispatchRecord{
			RunID:      run.ID,
			Seq:        seq,
			Label:      entry.candidate.Label,
			Action:     actionFor(entry.candidate),
			ExternalID: entry.candidate.ExternalID,
			ItemID:     entry.candidate.ItemID,
			Season:     entry.candidate.Season,
			Episode:    entry.candidate.Episode,
			Score:      entry.score,
			Reason:     entry.reason,
			Result:     tracking.ResultSent,
		}
		if dispatchErr != nil {
			rec.Result = tracking.ResultFailed
			logger.Warn("dispatch failed",
				logging.String(logging.FieldCandidate, entry.candidate.Label),
				logging.Error(dispatchErr))
		} else {
			rec.CommandID = &commandID
			dispatched++
			logger.Info("search dispatched",
				logging.String(logging.FieldCandidate, entry.candidate.Label),
				logging.Int64(logging.FieldCommandID, commandID),
				logging.Float64("score", entry.score),
				logging.String("reason", entry.reason))
		}
		seq++

		if err := r.store.AppendRecord(ctx, rec); err != nil {
			return dispatched, services.Wrap(services.ErrUnavailable, "tracking", "append record", err)
		}
	}
	return dispatched, nil
}

// dispatchSeasonPacks bundles batch episodes that share a season into single
// season searches when the queue allows it. Members of a successful bundle
// are marked handled; a failed bundle leaves its members eligible for the
// individual fallback pass.
func (r *Runner) dispatchSeasonPacks(ctx context.Context, logger *slog.Logger, run *tracking.Run, selected []scored, seq *int) (map[int64]struct{}, int, bool, error) {
	handled := make(map[int64]struct{})
	if !r.queue.SeasonPackEnabled {
		return handled, 0, false, nil
	}
	searcher, ok := r.provider.(SeasonSearcher)
	if !ok {
		return handled, 0, false, nil
	}

	type groupKey struct {
		seriesID int64
		season   int
	}
	groups := make(map[groupKey][]scored)
	order := make([]groupKey, 0)
	for _, entry := range selected {
		if !entry.candidate.IsEpisode() {
			continue
		}
		key := groupKey{seriesID: entry.candidate.ExternalID, season: entry.candidate.Season}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry)
	}

	dispatched := 0
	anyFailed := false
	for _, key := range order {
		members := groups[key]
		if len(members) < r.queue.SeasonPackThreshold {
			continue
		}

		commandID, err := searcher.SearchSeason(ctx, key.seriesID, key.season)
		if err != nil {
			anyFailed = true
			logger.Warn("season search failed, falling back to episodes",
				logging.Int64("series_id", key.seriesID),
				logging.Int("season", key.season),
				logging.Error(err))
			continue
		}

		best := members[0]
		for _, member := range members {
			if err := r.store.RecordSearch(ctx, r.provider.Name(), member.candidate, r.now().UTC()); err != nil {
				return handled, dispatched, anyFailed, services.Wrap(services.ErrUnavailable, "tracking", "record search", err)
			}
			handled[member.candidate.ItemID] = struct{}{}
			if member.score > best.score {
				best = member
			}
		}

		rec := &tracking.DispatchRecord{
			RunID:      run.ID,
			Seq:        *seq,
			Label:      fmt.Sprintf("%s season pack (%d episodes)", best.candidate.Label, len(members)),
			Action:     catalog.ActionSeasonSearch,
			ExternalID: key.seriesID,
			ItemID:     key.seriesID,
			Season:     key.season,
			Score:      best.score,
			Reason:     best.reason,
			CommandID:  &commandID,
			Result:     tracking.ResultSent,
		}
		*seq++
		if err := r.store.AppendRecord(ctx, rec); err != nil {
			return handled, dispatched, anyFailed, services.Wrap(services.ErrUnavailable, "tracking", "append record", err)
		}
		dispatched++

		logger.Info("season pack dispatched",
			logging.Int64("series_id", key.seriesID),
			logging.Int("season", key.season),
			logging.Int("episodes", len(members)),
			logging.Int64(logging.FieldCommandID, commandID))
	}
	return handled, dispatched, anyFailed, nil
}

func (r *Runner) finish(ctx context.Context, run *tracking.Run, considered, dispatched int, runErr error) (*tracking.Run, error) {
	status := tracking.RunCompleted
	message := ""
	if runErr != nil {
		status = tracking.RunFailed
		message = runErr.Error()
	}
	if err := r.store.FinishRun(ctx, run.ID, status, considered, dispatched, message); err != nil && runErr == nil {
		runErr = services.Wrap(services.ErrUnavailable, "tracking", "finish run", err)
		status = tracking.RunFailed
	}

	run.Status = status
	run.CandidatesConsidered = considered
	run.SearchesDispatched = dispatched
	run.ErrorMessage = message

	if runErr != nil {
		r.logger.Error("run failed",
			logging.String(logging.FieldRunID, run.ID),
			logging.Int("considered", considered),
			logging.Int("dispatched", dispatched),
			logging.Error(runErr))
		return run, runErr
	}
	r.logger.Info("run completed",
		logging.String(logging.FieldRunID, run.ID),
		logging.Int("considered", considered),
		logging.Int("dispatched", dispatched))
	return run, nil
}

func actionFor(candidate catalog.Candidate) catalog.ActionKind {
	if candidate.IsEpisode() {
		return catalog.ActionEpisodeSearch
	}
	return catalog.ActionMovieSearch
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
