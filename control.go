package queuectl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/queuectl/queuectl/event"
	"github.com/queuectl/queuectl/job"
	"github.com/queuectl/queuectl/payload"
)

// Control is the control-plane surface used by the CLI: enqueue, list,
// status, DLQ management, worker signaling, configuration, and history.
// It is a thin orchestration layer over Store; all formatting and
// argument parsing belongs to the caller.
type Control struct {
	store Store
}

// NewControl creates a Control over store.
func NewControl(store Store) *Control {
	return &Control{store: store}
}

// Enqueue normalizes raw into a command/max_retries/external_id triple
// (see package payload) and inserts a new Pending job. The effective
// max_retries is, in priority order: the structured payload's own field,
// the store's "max_retries" config key, then defaultRetries. An empty or
// all-whitespace command is rejected with an error and nothing is inserted.
func (c *Control) Enqueue(ctx context.Context, raw []string, defaultRetries uint32) (int64, error) {
	parsed := payload.Parse(raw)
	if strings.TrimSpace(parsed.Command) == "" {
		return 0, errors.New("command is required")
	}

	retries := defaultRetries
	if v, ok, err := c.store.ConfigGet(ctx, "max_retries"); err == nil && ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			retries = uint32(n)
		}
	}
	if parsed.MaxRetries != nil {
		retries = *parsed.MaxRetries
	}

	id, err := c.store.InsertJob(ctx, parsed.Command, retries, parsed.ExternalID)
	if err != nil {
		return 0, err
	}
	c.addEvent(ctx, id, event.Enqueued, fmt.Sprintf("cmd=%s, max_retires=%d", parsed.Command, retries))
	return id, nil
}

// List returns jobs in the given status, or every job if status is the
// zero value.
func (c *Control) List(ctx context.Context, status job.Status) ([]*job.Job, error) {
	return c.store.ListJobs(ctx, status)
}

// StatusCounts is the result of the Status operation.
type StatusCounts struct {
	Counts        map[job.Status]int64
	ActiveWorkers int
}

// Status reports per-state job counts and the number of active workers
// at the default liveness threshold.
func (c *Control) Status(ctx context.Context) (*StatusCounts, error) {
	counts, err := c.store.CountsByState(ctx)
	if err != nil {
		return nil, err
	}
	active, err := c.store.CountActiveWorkers(ctx, DefaultActiveThreshold)
	if err != nil {
		return nil, err
	}
	return &StatusCounts{Counts: counts, ActiveWorkers: active}, nil
}

// DLQList returns dead jobs, newest-updated first.
func (c *Control) DLQList(ctx context.Context) ([]*job.Job, error) {
	return c.store.ListDeadJobs(ctx)
}

// DLQRetry retries the dead job named by identifier, a numeric id or an
// external id. It reports (false, nil), not an error, when identifier
// does not match any dead job.
func (c *Control) DLQRetry(ctx context.Context, identifier string) (bool, error) {
	ok, err := c.store.DLQRetry(ctx, identifier)
	if err != nil || !ok {
		return ok, err
	}
	if j, err := c.resolve(ctx, identifier); err == nil && j != nil {
		c.addEvent(ctx, j.Id, event.DLQRetry, "")
	}
	return true, nil
}

func (c *Control) resolve(ctx context.Context, identifier string) (*job.Job, error) {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return c.store.GetJob(ctx, id)
	}
	return c.store.GetJobByExternalID(ctx, identifier)
}

// SignalWorkersStop toggles the "workers_should_stop" config key observed
// by every running Worker between claim attempts.
func (c *Control) SignalWorkersStop(ctx context.Context, stop bool) error {
	v := "0"
	if stop {
		v = "1"
	}
	return c.store.ConfigSet(ctx, "workers_should_stop", v)
}

// ConfigSet stores key=value, normalizing hyphens to underscores so that
// "max-retries" and "max_retries" address the same key.
func (c *Control) ConfigSet(ctx context.Context, key, value string) error {
	return c.store.ConfigSet(ctx, normalizeKey(key), value)
}

// ConfigGet returns the value for key, normalized the same way as
// ConfigSet.
func (c *Control) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	return c.store.ConfigGet(ctx, normalizeKey(key))
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// History returns a single job by id, or every job ordered by creation
// time ascending, for the `history` command's line-delimited JSON output.
func (c *Control) History(ctx context.Context, id *int64) ([]*job.Job, error) {
	if id != nil {
		j, err := c.store.GetJob(ctx, *id)
		if err != nil {
			return nil, err
		}
		return []*job.Job{j}, nil
	}
	return c.store.ListJobs(ctx, "")
}

func (c *Control) addEvent(ctx context.Context, jobID int64, evt, detail string) {
	_ = c.store.AddEvent(ctx, &jobID, evt, detail)
}
