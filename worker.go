package queuectl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/queuectl/queuectl/event"
	"github.com/queuectl/queuectl/internal"
	"github.com/queuectl/queuectl/job"
)

// WorkerConfig defines runtime behavior of a Worker.
//
// PollInterval is how often the worker polls the dispatcher when the queue
// is empty. BackoffBase is the fallback exponentiation base used when the
// store has no "backoff" configuration key set.
type WorkerConfig struct {
	PollInterval time.Duration
	BackoffBase  uint64
}

// Worker repeatedly claims, executes, and settles jobs, emitting
// heartbeats and observing the shared stop flag.
//
// A Worker has a strict lifecycle: Start may only be called once, and Stop
// waits for the in-flight claim/execute/settle cycle — including any
// post-failure backoff sleep — to finish, subject to a timeout. The stop
// signal is observed only between claims, never mid-execution: a worker
// that just claimed a job finishes executing it, and if it fails and
// retries remain, finishes its backoff sleep and the retry transition,
// before checking the stop flag again.
type Worker struct {
	lcBase

	id         string
	store      Store
	dispatcher *Dispatcher
	exec       *Executor
	log        *slog.Logger
	poll       time.Duration
	backoff    backoffCounter
	limiter    *rate.Limiter

	cancel context.CancelFunc
	done   internal.DoneChan
}

// NewWorker creates a Worker with a freshly generated worker id in the
// form pid-<random>, the Go analogue of the original's
// "pid-<random>-<thread-ident>" (Go has no thread identity to expose).
func NewWorker(store Store, exec *Executor, cfg *WorkerConfig, log *slog.Logger) *Worker {
	return &Worker{
		id:         fmt.Sprintf("%d-%s", os.Getpid(), uuid.New().String()[:6]),
		store:      store,
		dispatcher: NewDispatcher(store),
		exec:       exec,
		log:        log,
		poll:       cfg.PollInterval,
		backoff:    backoffCounter{base: cfg.BackoffBase},
		limiter:    rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
	}
}

// ID returns the identifier this worker registered under.
func (w *Worker) ID() string {
	return w.id
}

// Start registers the worker and begins its claim/execute/settle loop in a
// background goroutine. Start returns ErrDoubleStarted if already started.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.tryStart(); err != nil {
		return err
	}
	if err := w.store.RegisterWorker(ctx, w.id, os.Getpid()); err != nil {
		w.log.Warn("worker registration failed", "worker", w.id, "err", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(internal.DoneChan)
	go w.run(runCtx)
	return nil
}

// Stop initiates graceful shutdown: it stops claiming new work and waits
// for the current cycle to finish, up to timeout. Stop returns
// ErrDoubleStopped if the worker is not running, or ErrStopTimeout if
// shutdown did not complete in time (the worker may still be finishing in
// the background).
func (w *Worker) Stop(timeout time.Duration) error {
	return w.tryStop(timeout, func() internal.DoneChan {
		w.cancel()
		return w.done
	})
}

// run owns the claim/execute/settle loop. runCtx governs only the
// between-jobs poll wait, so Stop cancels it promptly; every store call
// and command execution uses a detached background context so a final
// "stopped" heartbeat and an in-flight settle always reach durable
// storage even after runCtx has been canceled.
func (w *Worker) run(runCtx context.Context) {
	defer close(w.done)
	storeCtx := context.Background()
	for {
		w.heartbeat(storeCtx, "running")
		stopRequested := w.shouldStop(storeCtx)

		j, err := w.dispatcher.ClaimNext(storeCtx)
		if err != nil {
			w.log.Error("claim failed", "worker", w.id, "err", err)
			j = nil
		}

		if j == nil {
			if stopRequested {
				w.heartbeat(storeCtx, "stopped")
				return
			}
			if err := w.limiter.Wait(runCtx); err != nil {
				w.heartbeat(storeCtx, "stopped")
				return
			}
			continue
		}

		w.settle(storeCtx, j)
		if runCtx.Err() != nil {
			w.heartbeat(storeCtx, "stopped")
			return
		}
		w.heartbeat(storeCtx, "running")
	}
}

// settle executes a claimed job and drives it to its next state: completed,
// dead, or back to pending after a deterministic backoff sleep.
func (w *Worker) settle(ctx context.Context, j *job.Job) {
	w.addEvent(ctx, &j.Id, event.Processing, fmt.Sprintf("worker=%s", w.id))
	w.log.Info("processing job", "worker", w.id, "job", j.Id, "attempt", j.Attempts+1, "max_retries", j.MaxRetries)

	outcome := Failed
	if w.exec.Execute(ctx, j.Command) {
		outcome = Success
	}
	decision := Decide(outcome, j.Attempts, j.MaxRetries)

	switch decision.NextState {
	case job.Completed:
		if err := w.store.Complete(ctx, j.Id); err != nil {
			w.log.Error("cannot complete job", "job", j.Id, "err", err)
		}
		w.log.Info("completed job", "worker", w.id, "job", j.Id)
		w.addEvent(ctx, &j.Id, event.Completed, "")

	case job.Dead:
		if err := w.store.Kill(ctx, j.Id, decision.NextAttempts); err != nil {
			w.log.Error("cannot kill job", "job", j.Id, "err", err)
		}
		w.log.Info("moved job to DLQ", "worker", w.id, "job", j.Id)
		w.addEvent(ctx, &j.Id, event.Dead, "")

	case job.Pending:
		delay := w.backoff.delay(decision.NextAttempts, w.configuredBackoffBase(ctx))
		w.log.Info("retrying job", "worker", w.id, "job", j.Id, "delay", delay, "attempt", decision.NextAttempts, "max_retries", j.MaxRetries)
		// Not interruptible by the stop signal: a failed attempt finishes
		// its full delay before the row is released back to pending,
		// matching the chosen lease-in-processing design (spec.md §9).
		time.Sleep(delay)
		if err := w.store.Retry(ctx, j.Id, decision.NextAttempts); err != nil {
			w.log.Error("cannot retry job", "job", j.Id, "err", err)
		}
		w.addEvent(ctx, &j.Id, event.RetryScheduled, fmt.Sprintf("attempts=%d, delay=%s", decision.NextAttempts, delay))
	}
}

func (w *Worker) shouldStop(ctx context.Context) bool {
	val, ok, err := w.store.ConfigGet(ctx, "workers_should_stop")
	if err != nil {
		w.log.Warn("reading stop flag failed", "err", err)
		return false
	}
	return ok && val == "1"
}

// configuredBackoffBase reads the "backoff" config key, returning 0 (no
// override) if it is absent or unparsable.
func (w *Worker) configuredBackoffBase(ctx context.Context) uint64 {
	val, ok, err := w.store.ConfigGet(ctx, "backoff")
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (w *Worker) heartbeat(ctx context.Context, status string) {
	if err := w.store.Heartbeat(ctx, w.id, status); err != nil {
		w.log.Warn("heartbeat failed", "worker", w.id, "err", err)
	}
}

func (w *Worker) addEvent(ctx context.Context, jobID *int64, evt string, detail string) {
	if err := w.store.AddEvent(ctx, jobID, evt, detail); err != nil {
		w.log.Warn("event append failed", "event", evt, "job", jobID, "err", err)
	}
}
