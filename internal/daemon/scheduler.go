package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fetcharr/internal/arr/radarr"
	"fetcharr/internal/arr/sonarr"
	"fetcharr/internal/config"
	"fetcharr/internal/feedback"
	"fetcharr/internal/logging"
	"fetcharr/internal/search"
	"fetcharr/internal/tracking"
)

// InstanceClient is the full surface a queue worker needs from one instance:
// candidate listing and dispatch for runs, command polling and existence
// checks for feedback.
type InstanceClient interface {
	search.Provider
	feedback.Verifier
}

// BuildClient constructs the typed client for a configured instance.
func BuildClient(inst config.Instance, workflow config.Workflow, logger *slog.Logger) (InstanceClient, error) {
	switch inst.Type {
	case "sonarr":
		return sonarr.New(inst, workflow, logger), nil
	case "radarr":
		return radarr.New(inst, workflow, logger), nil
	default:
		return nil, fmt.Errorf("unknown instance type %q", inst.Type)
	}
}

// Scheduler owns one worker per configured queue and their feedback timers.
type Scheduler struct {
	workers []*worker
	logger  *slog.Logger
	wg      sync.WaitGroup
}

type worker struct {
	queue    config.Queue
	runner   *search.Runner
	checker  *feedback.Checker
	verifier feedback.Verifier
	store    *tracking.Store

	interval      time.Duration
	errorRetry    time.Duration
	feedbackDelay time.Duration

	logger *slog.Logger
	busy   sync.Mutex
}

// NewScheduler builds workers for every configured queue.
func NewScheduler(cfg *config.Config, store *tracking.Store, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Scheduler{logger: logger}
	for _, queue := range cfg.Queues {
		inst, ok := cfg.InstanceByName(queue.Instance)
		if !ok {
			return nil, fmt.Errorf("queue %q: unknown instance %q", queue.Name, queue.Instance)
		}
		client, err := BuildClient(inst, cfg.Workflow, logger)
		if err != nil {
			return nil, fmt.Errorf("queue %q: %w", queue.Name, err)
		}

		s.workers = append(s.workers, &worker{
			queue:         queue,
			runner:        search.NewRunner(store, client, queue, cfg.Workflow, logger),
			checker:       feedback.NewChecker(store, logger),
			verifier:      client,
			store:         store,
			interval:      queue.Interval(),
			errorRetry:    time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
			feedbackDelay: cfg.FeedbackDelay(),
			logger:        logger.With(logging.String(logging.FieldQueue, queue.Name)),
		})
	}
	return s, nil
}

// Start launches one loop per queue.
func (s *Scheduler) Start(ctx context.Context) {
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *worker) {
			defer s.wg.Done()
			w.loop(ctx, &s.wg)
		}(w)
	}
}

// Stop waits for every queue loop and pending feedback timer to finish.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

// QueueStatus summarizes one queue's schedule for the status API.
type QueueStatus struct {
	Name          string    `json:"name"`
	Instance      string    `json:"instance"`
	Strategy      string    `json:"strategy"`
	IntervalHours int       `json:"interval_hours"`
	LastRunID     string    `json:"last_run_id,omitempty"`
	LastRunStatus string    `json:"last_run_status,omitempty"`
	LastRunAt     time.Time `json:"last_run_at,omitzero"`
}

// Status reports the schedule state of every queue.
func (s *Scheduler) Status(ctx context.Context) []QueueStatus {
	statuses := make([]QueueStatus, 0, len(s.workers))
	for _, w := range s.workers {
		status := QueueStatus{
			Name:          w.queue.Name,
			Instance:      w.queue.Instance,
			Strategy:      w.queue.Strategy,
			IntervalHours: w.queue.IntervalHours,
		}
		if last, err := w.store.LastRun(ctx, w.queue.Name); err == nil && last != nil {
			status.LastRunID = last.ID
			status.LastRunStatus = string(last.Status)
			status.LastRunAt = last.StartedAt
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// loop ticks the queue on its interval. A failed run retries sooner; a
// restart resumes the interval from the last recorded run instead of
// re-dispatching immediately.
func (w *worker) loop(ctx context.Context, feedbackWG *sync.WaitGroup) {
	timer := time.NewTimer(w.initialDelay(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := w.interval
		if err := w.runOnce(ctx, feedbackWG); err != nil {
			next = w.errorRetry
			w.logger.Error("run failed, retrying sooner",
				logging.Error(err),
				logging.Duration("retry_in", next))
		}
		if ctx.Err() != nil {
			return
		}
		timer.Reset(next)
	}
}

func (w *worker) initialDelay(ctx context.Context) time.Duration {
	last, err := w.store.LastRun(ctx, w.queue.Name)
	if err != nil || last == nil {
		return 0
	}
	elapsed := time.Since(last.StartedAt)
	if elapsed >= w.interval {
		return 0
	}
	return w.interval - elapsed
}

// runOnce executes a single run. The busy lock keeps a queue from ever
// running against itself, so attempt counters cannot double-increment.
func (w *worker) runOnce(ctx context.Context, feedbackWG *sync.WaitGroup) error {
	if !w.busy.TryLock() {
		w.logger.Warn("previous run still in progress, skipping tick")
		return nil
	}
	defer w.busy.Unlock()

	run, err := w.runner.Run(ctx)
	if run != nil && run.SearchesDispatched > 0 && ctx.Err() == nil {
		feedbackWG.Add(1)
		go w.feedbackAfterDelay(ctx, feedbackWG, run.ID)
	}
	return err
}

// feedbackAfterDelay waits out the configured delay and resolves the run's
// dispatch outcomes once. Shutdown abandons the wait; the records stay
// pending and a later manual check can still resolve them.
func (w *worker) feedbackAfterDelay(ctx context.Context, wg *sync.WaitGroup, runID string) {
	defer wg.Done()

	timer := time.NewTimer(w.feedbackDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	summary, err := w.checker.CheckRun(ctx, w.verifier, runID)
	if err != nil {
		w.logger.Error("feedback check failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err))
		return
	}
	w.logger.Info("feedback resolved",
		logging.String(logging.FieldRunID, runID),
		logging.Int("checked", summary.Checked),
		logging.Int("confirmed", summary.Confirmed))
}
