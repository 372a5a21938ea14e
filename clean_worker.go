package queuectl

import (
	"context"
	"log/slog"
	"time"

	"github.com/queuectl/queuectl/internal"
	"github.com/queuectl/queuectl/job"
)

// CleanConfig defines the scheduling and filtering parameters for a
// CleanWorker: the terminal-row retention background task (spec.md §4
// supplement, "gc").
//
// Status restricts deletion to a single terminal state (job.Completed or
// job.Dead); the zero value targets both. Interval defines how often the
// cleaner runs. If Before is true, deletion is restricted to rows whose
// updated_at is older than now - Delta.
type CleanConfig struct {
	Status   job.Status
	Interval time.Duration
	Before   bool
	Delta    time.Duration
}

// CleanWorker periodically purges terminal jobs from the store.
//
// CleanWorker never touches Pending or Processing rows: Store.Purge
// rejects any non-terminal status with ErrBadStatus, and the zero Status
// value is interpreted by Store as "Completed and Dead", never "all
// states".
//
// CleanWorker has a strict lifecycle: Start may only be called once, and
// Stop waits for the task to finish or the timeout to expire.
type CleanWorker struct {
	lcBase
	store    Store
	task     internal.TimerTask
	log      *slog.Logger
	status   job.Status
	interval time.Duration
	before   bool
	delta    time.Duration
}

// NewCleanWorker creates a CleanWorker against store. The worker is not
// started automatically; call Start to begin periodic cleaning.
func NewCleanWorker(store Store, config *CleanConfig, log *slog.Logger) *CleanWorker {
	return &CleanWorker{
		store:    store,
		log:      log,
		status:   config.Status,
		interval: config.Interval,
		before:   config.Before,
		delta:    config.Delta,
	}
}

func (cw *CleanWorker) beforeStamp() *time.Time {
	if !cw.before {
		return nil
	}
	ret := time.Now()
	if cw.delta != 0 {
		ret = ret.Add(-cw.delta)
	}
	return &ret
}

func (cw *CleanWorker) clean(ctx context.Context) {
	before := cw.beforeStamp()
	count, err := cw.store.Purge(ctx, cw.status, before)
	if err != nil {
		cw.log.Error("error while cleaning", "err", err)
		return
	}
	cw.log.Info("purged terminal jobs", "count", count, "status", cw.status)
}

// Start begins periodic execution of the purge task. Start returns
// ErrDoubleStarted if the worker has already been started.
func (cw *CleanWorker) Start(ctx context.Context) error {
	if err := cw.tryStart(); err != nil {
		return err
	}
	cw.task.Start(ctx, cw.clean, cw.interval)
	return nil
}

// Stop terminates the background purge task, waiting up to timeout. Stop
// returns ErrDoubleStopped if the worker is not running.
func (cw *CleanWorker) Stop(timeout time.Duration) error {
	return cw.tryStop(timeout, cw.task.Stop)
}
