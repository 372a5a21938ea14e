// Package event defines the append-only audit log entity.
//
// Events are advisory: losing one does not compromise queue correctness.
// The worker loop and control surface append events on a best-effort basis
// and never let an event-append failure fail the operation it's describing.
package event

import "time"

// Event is one row of the audit log.
//
// JobID is nil for events that aren't about a specific job. Detail is free
// text and may be empty.
type Event struct {
	Id        int64
	JobID     *int64
	Event     string
	Detail    string
	CreatedAt time.Time
}

// Well-known event labels, matching the strings the original worker and
// control surface write.
const (
	Enqueued       = "enqueued"
	Processing     = "processing"
	Completed      = "completed"
	Dead           = "dead"
	RetryScheduled = "retry_scheduled"
	DLQRetry       = "dlq_retry"
)
