package queuectl

import "context"

// DefaultActiveThreshold is the liveness window, in seconds, used when
// counting active workers: a worker is active if it has heartbeated
// within the last DefaultActiveThreshold seconds.
const DefaultActiveThreshold = 10

// Registry is a thin wrapper over Store's worker-tracking methods,
// grounded in queuectl.py's worker bookkeeping (register on start,
// heartbeat on every loop iteration, count for `queuectl status`).
type Registry struct {
	store Store
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Register upserts a worker row for workerID/pid with status "running".
func (r *Registry) Register(ctx context.Context, workerID string, pid int) error {
	return r.store.RegisterWorker(ctx, workerID, pid)
}

// Heartbeat refreshes workerID's last-seen timestamp and status.
func (r *Registry) Heartbeat(ctx context.Context, workerID, status string) error {
	return r.store.Heartbeat(ctx, workerID, status)
}

// CountActive returns the number of workers whose heartbeat is no older
// than thresholdSeconds and whose status is "running".
func (r *Registry) CountActive(ctx context.Context, thresholdSeconds int) (int, error) {
	return r.store.CountActiveWorkers(ctx, thresholdSeconds)
}
