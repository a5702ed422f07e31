package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fetcharr/internal/config"
	"fetcharr/internal/logging"
	"fetcharr/internal/tracking"
)

// Daemon coordinates the queue schedulers and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *tracking.Store

	scheduler *Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DBPath       string
	LockFilePath string
	Queues       []QueueStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *tracking.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(cfg.Queues) == 0 {
		return nil, errors.New("no queues configured")
	}

	scheduler, err := NewScheduler(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "fetcharr.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: scheduler,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d)
	return d, nil
}

// Start acquires the daemon lock and launches the queue loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fetcharr daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.scheduler.Start(runCtx)
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("fetcharr daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("queues", len(d.cfg.Queues)))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fetcharr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Queues:       d.scheduler.Status(ctx),
	}
}
