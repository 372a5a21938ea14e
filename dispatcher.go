package queuectl

import (
	"context"

	"github.com/queuectl/queuectl/job"
)

// Dispatcher is the claim-protocol surface: given a Store, ClaimNext
// atomically selects and claims the next eligible job.
//
// The algorithm Store.ClaimNext must implement:
//
//  1. Begin an immediate/exclusive write transaction.
//  2. Select the oldest pending row, ordered by created_at then id.
//  3. If none, commit and return no job.
//  4. Update that row's state to processing, guarded by state='pending'.
//  5. If exactly one row was updated, commit and return it; otherwise
//     roll back and return no job (a concurrent claimer won the race).
//  6. On any error, roll back and return no job.
//
// The predicate-guarded UPDATE is the sole correctness guarantee against
// duplicate claims; the surrounding transaction only reduces contention
// between step 2 and step 4.
type Dispatcher struct {
	store Store
}

// NewDispatcher creates a Dispatcher over store.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// ClaimNext claims the next eligible job, or returns (nil, nil) if none
// is currently available.
func (d *Dispatcher) ClaimNext(ctx context.Context) (*job.Job, error) {
	return d.store.ClaimNext(ctx)
}
