package queuectl

import "github.com/queuectl/queuectl/job"

// transitions enumerates every legal (from, to) state pair. It exists for
// documentation and for Validate; the actual correctness guarantee is the
// predicate-guarded UPDATE in the store (see Dispatcher and Store), not
// this in-memory check.
var transitions = map[job.Status][]job.Status{
	job.Pending:    {job.Processing},
	job.Processing: {job.Completed, job.Pending, job.Dead},
	job.Dead:       {job.Pending},
}

// Validate reports whether from -> to is a legal transition under the job
// state machine (spec.md §4.B). The zero value of job.Status (creation,
// "(none) -> pending") is always legal as a source for Pending.
func Validate(from, to job.Status) bool {
	if from == "" {
		return to == job.Pending
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Outcome is the result of executing a claimed job.
type Outcome int

const (
	// Success means the executed command exited zero.
	Success Outcome = iota
	// Failed means the executed command exited non-zero, or could not be
	// launched at all.
	Failed
)

// Decision is what the state machine says should happen to a Processing
// job once its execution outcome is known.
type Decision struct {
	NextState    job.Status
	NextAttempts uint32 // meaningful when NextState is Pending or Dead
	Backoff      bool   // true when NextState == Pending via a retry (caller must sleep first)
}

// defaultMaxRetries is substituted for a stored max_retries of 0, mirroring
// worker.py's "max_retires = int(job['max_retires'] or 3)": a degenerate 0
// must not make a job dead on its first failure (invariant 3: attempts <=
// max_retries only holds if max_retries is never 0).
const defaultMaxRetries uint32 = 3

// Decide implements the processing -> {completed, pending, dead} leg of the
// state machine: attempts is incremented each time a job fails, and DLQ
// promotion occurs once attempts reaches maxRetries (spec.md invariant 3).
func Decide(outcome Outcome, attempts, maxRetries uint32) Decision {
	if outcome == Success {
		return Decision{NextState: job.Completed}
	}
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	next := attempts + 1
	if next >= maxRetries {
		return Decision{NextState: job.Dead, NextAttempts: next}
	}
	return Decision{NextState: job.Pending, NextAttempts: next, Backoff: true}
}

// DecideDLQRetry implements the dead -> pending leg: an explicit DLQ retry
// always resets attempts to 0, regardless of how many attempts preceded it.
func DecideDLQRetry() Decision {
	return Decision{NextState: job.Pending, NextAttempts: 0}
}
