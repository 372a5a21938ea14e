package queuectl

import (
	"context"
	"errors"
	"time"

	"github.com/queuectl/queuectl/event"
	"github.com/queuectl/queuectl/job"
)

var (
	// ErrJobNotFound indicates that no job exists for the given id or
	// external id.
	ErrJobNotFound = errors.New("job not found")

	// ErrBadStatus indicates an invalid status was supplied to Purge.
	// Purge only accepts terminal states (Completed, Dead); the zero value
	// is interpreted as "both".
	ErrBadStatus = errors.New("bad job status")
)

// Store is the persistent-store contract: durable tables for jobs,
// workers, events and configuration, transactional writes, and a
// row-level compare-and-swap primitive (ClaimNext).
//
// All write operations must be durable before returning. Transient
// contention (a busy/locked database) is retried internally with bounded
// backoff by implementations; persistent storage errors are surfaced to
// the caller.
type Store interface {

	// InsertJob creates a new job in the Pending state with attempts=0.
	// command must be non-empty; callers are responsible for validating
	// that before calling InsertJob.
	InsertJob(ctx context.Context, command string, maxRetries uint32, externalID string) (int64, error)

	// GetJob returns the job with the given internal id, or ErrJobNotFound.
	GetJob(ctx context.Context, id int64) (*job.Job, error)

	// GetJobByExternalID returns the job with the given caller-supplied
	// external id, or ErrJobNotFound. Uniqueness of external_id is not
	// enforced by the store; if more than one row matches, the choice
	// among them is implementation-defined.
	GetJobByExternalID(ctx context.Context, externalID string) (*job.Job, error)

	// ListJobs returns jobs ordered by creation time ascending. If status
	// is the zero value, no state filter is applied.
	ListJobs(ctx context.Context, status job.Status) ([]*job.Job, error)

	// ListDeadJobs returns jobs in the Dead state, newest-updated first
	// (ties broken by id descending).
	ListDeadJobs(ctx context.Context) ([]*job.Job, error)

	// CountsByState returns the number of jobs in each of the five legal
	// states. Every legal Status is present in the result, including zero
	// counts.
	CountsByState(ctx context.Context) (map[job.Status]int64, error)

	// ClaimNext atomically selects the oldest eligible Pending job
	// (ordered by created_at ascending, ties broken by id ascending) and
	// transitions it to Processing. It returns (nil, nil) if no job is
	// eligible or if a concurrent claim won the race for the same row.
	//
	// ClaimNext is the dispatcher's claim protocol: see Dispatcher for the
	// algorithm it must implement.
	ClaimNext(ctx context.Context) (*job.Job, error)

	// Complete transitions a Processing job to Completed. The predicate
	// requires state='processing'; if no row matched, ErrJobNotFound is
	// returned (the job was concurrently modified, which should not
	// happen under the single-owner claim protocol, but is not assumed
	// impossible).
	Complete(ctx context.Context, id int64) error

	// Retry transitions a Processing job back to Pending with attempts
	// set to nextAttempts. The predicate requires state='processing'.
	Retry(ctx context.Context, id int64, nextAttempts uint32) error

	// Kill transitions a Processing job to Dead with attempts set to
	// nextAttempts, reflecting the number of failures that occurred.
	Kill(ctx context.Context, id int64, nextAttempts uint32) error

	// DLQRetry performs the explicit dead -> pending transition. identifier
	// is interpreted as a numeric id if parseable, otherwise as an
	// external id. attempts is reset to 0. DLQRetry returns (true, nil)
	// iff exactly one row was affected; (false, nil) if no dead job
	// matched identifier (not an error — the caller decides how to report
	// a miss).
	DLQRetry(ctx context.Context, identifier string) (bool, error)

	// Purge permanently deletes jobs in a terminal state. status must be
	// Completed, Dead, or the zero value (meaning both); any other value
	// returns ErrBadStatus. If before is non-nil, only rows with
	// updated_at <= *before are deleted. Purge never deletes Pending or
	// Processing rows. It returns the number of deleted rows.
	Purge(ctx context.Context, status job.Status, before *time.Time) (int64, error)

	// ConfigGet returns the value for key and whether it was found.
	ConfigGet(ctx context.Context, key string) (string, bool, error)

	// ConfigSet upserts key=value.
	ConfigSet(ctx context.Context, key, value string) error

	// RegisterWorker upserts a worker row with started_at=now,
	// last_heartbeat=now, status='running'.
	RegisterWorker(ctx context.Context, workerID string, pid int) error

	// Heartbeat refreshes last_heartbeat=now and sets status for an
	// already-registered worker.
	Heartbeat(ctx context.Context, workerID string, status string) error

	// CountActiveWorkers returns the number of workers with
	// status='running' and a heartbeat no older than thresholdSeconds.
	CountActiveWorkers(ctx context.Context, thresholdSeconds int) (int, error)

	// AddEvent appends an audit log row. jobID may be nil. Failures here
	// are advisory; callers must not let them fail the operation the
	// event describes.
	AddEvent(ctx context.Context, jobID *int64, evt string, detail string) error

	// ListEvents returns events ordered by created_at (and id, as a
	// tiebreak) in the given order ("asc" or anything else meaning
	// "desc"), optionally filtered to a single job and capped at limit
	// rows (limit <= 0 meaning unbounded).
	ListEvents(ctx context.Context, jobID *int64, limit int, order string) ([]*event.Event, error)
}
