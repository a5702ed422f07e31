// Package feedback closes the search loop: some time after a run it polls
// each dispatched command, checks whether the content actually arrived, and
// folds confirmed grabs back into tracked state so scoring and cooldown see
// real success rates.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"fetcharr/internal/arr"
	"fetcharr/internal/catalog"
	"fetcharr/internal/logging"
	"fetcharr/internal/services"
	"fetcharr/internal/tracking"
)

// Verifier is the instance surface the checker polls.
type Verifier interface {
	Name() string
	CommandState(ctx context.Context, commandID int64) (arr.CommandState, error)
	HasContent(ctx context.Context, candidate catalog.Candidate) (bool, error)
}

// Summary reports what one check pass covered.
type Summary struct {
	Checked   int
	Confirmed int
}

// Checker resolves dispatch outcomes for completed runs.
type Checker struct {
	store  *tracking.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewChecker builds a checker over the tracking store.
func NewChecker(store *tracking.Store, logger *slog.Logger) *Checker {
	return &Checker{
		store:  store,
		logger: logging.NewComponentLogger(logger, "feedback"),
		now:    time.Now,
	}
}

// CheckRun resolves every pending dispatch record of a run. Lookup failures
// are scoped to their record and resolve it to unknown; the pass continues.
// Re-running the checker for an already-resolved run is a no-op because each
// record transitions out of the dispatched state exactly once.
func (c *Checker) CheckRun(ctx context.Context, verifier Verifier, runID string) (Summary, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrUnavailable, "tracking", "get run", err)
	}
	if run == nil {
		return Summary{}, services.Wrap(services.ErrNotFound, "feedback", "run "+runID, nil)
	}

	records, err := c.store.PendingRecords(ctx, runID)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrUnavailable, "tracking", "pending records", err)
	}

	logger := c.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldInstance, run.Instance),
	)

	var summary Summary
	for _, rec := range records {
		if !rec.Action.IsSearch() || rec.CommandID == nil || rec.Result != tracking.ResultSent {
			// Nothing verifiable: failed submissions and bulk commands
			// resolve to unknown.
			if _, err := c.store.SetOutcome(ctx, rec.ID, tracking.OutcomeUnknown); err != nil {
				return summary, services.Wrap(services.ErrUnavailable, "tracking", "set outcome", err)
			}
			continue
		}

		summary.Checked++
		outcome := c.resolve(ctx, verifier, logger, rec)

		applied, err := c.store.SetOutcome(ctx, rec.ID, outcome)
		if err != nil {
			return summary, services.Wrap(services.ErrUnavailable, "tracking", "set outcome", err)
		}
		if outcome != tracking.OutcomeConfirmed || !applied {
			continue
		}

		summary.Confirmed++
		kind := catalog.KindMovie
		if rec.Action == catalog.ActionEpisodeSearch {
			kind = catalog.KindSeries
		}
		if _, err := c.store.RecordGrab(ctx, run.Instance, kind, rec.ExternalID, c.now().UTC()); err != nil {
			return summary, services.Wrap(services.ErrUnavailable, "tracking", "record grab", err)
		}
		logger.Info("grab confirmed",
			logging.String(logging.FieldCandidate, rec.Label),
			logging.Int64(logging.FieldCommandID, *rec.CommandID))
	}

	logger.Info("feedback check finished",
		logging.Int("checked", summary.Checked),
		logging.Int("confirmed", summary.Confirmed))
	return summary, nil
}

// resolve determines the terminal outcome for one record. Any failure along
// the way degrades to unknown rather than aborting the pass.
func (c *Checker) resolve(ctx context.Context, verifier Verifier, logger *slog.Logger, rec *tracking.DispatchRecord) tracking.Outcome {
	state, err := verifier.CommandState(ctx, *rec.CommandID)
	if err != nil {
		logger.Warn("command lookup failed",
			logging.Int64(logging.FieldCommandID, *rec.CommandID),
			logging.Error(err))
		return tracking.OutcomeUnknown
	}
	if !state.Completed() {
		return tracking.OutcomeUnknown
	}

	candidate := catalog.Candidate{
		Kind:       catalog.KindMovie,
		Label:      rec.Label,
		ExternalID: rec.ExternalID,
		ItemID:     rec.ItemID,
		Season:     rec.Season,
		Episode:    rec.Episode,
	}
	if rec.Action == catalog.ActionEpisodeSearch {
		candidate.Kind = catalog.KindSeries
	}

	has, err := verifier.HasContent(ctx, candidate)
	if err != nil {
		logger.Warn("existence check failed",
			logging.String(logging.FieldCandidate, rec.Label),
			logging.Error(err))
		return tracking.OutcomeUnknown
	}
	if has {
		return tracking.OutcomeConfirmed
	}
	return tracking.OutcomeNotConfirmed
}
