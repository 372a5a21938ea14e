package job

import "fmt"

// Status represents the current lifecycle state of a Job.
//
// The state machine is:
//
//	(none)     -> Pending     (enqueue)
//	Pending    -> Processing  (claim)
//	Processing -> Completed   (execute succeeded)
//	Processing -> Pending     (execute failed, retries remain)
//	Processing -> Dead        (execute failed, retries exhausted)
//	Dead       -> Pending     (explicit DLQ retry, attempts reset to 0)
//
// Status is backed by the same lowercase strings the original sqlite
// "state" column stores, so it round-trips through the database and the
// CLI without translation.
//
// Failed is reserved: no transition in this package produces it, but it is
// a legal value for filtering and must be accepted on input.
type Status string

const (
	// Pending indicates the job is eligible for claiming. A job newly
	// created by enqueue, or returned from a failed attempt with retries
	// remaining, or explicitly retried out of the DLQ, is Pending.
	Pending Status = "pending"

	// Processing indicates the job has been claimed by a worker and is
	// not eligible for claiming by any other worker.
	Processing Status = "processing"

	// Completed indicates the job finished execution successfully.
	// Terminal.
	Completed Status = "completed"

	// Failed is reserved for compatibility: the worker loop never writes
	// it, but it must be accepted as a legal value on input (list filters,
	// persisted legacy rows).
	Failed Status = "failed"

	// Dead indicates the job exhausted its retry budget. Terminal until
	// an explicit DLQ retry.
	Dead Status = "dead"
)

// All enumerates every legal Status value, including the reserved Failed,
// in the order the control surface reports them (spec's per-state counts).
func All() []Status {
	return []Status{Pending, Processing, Completed, Failed, Dead}
}

// Valid reports whether s is one of the five legal state values.
func Valid(s Status) bool {
	switch s {
	case Pending, Processing, Completed, Failed, Dead:
		return true
	default:
		return false
	}
}

// ParseStatus validates a string as a Status, accepting only the five
// lowercase canonical names.
func ParseStatus(s string) (Status, error) {
	v := Status(s)
	if !Valid(v) {
		return "", fmt.Errorf("unknown state: %s", s)
	}
	return v, nil
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
