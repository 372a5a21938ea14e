package sql

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/queuectl/queuectl/event"
	"github.com/queuectl/queuectl/job"
)

// jobModel mirrors the original "jobs" table, down to the max_retires
// misspelling: the column is a pre-existing fact of the schema that a
// migration could rename, but every other tool that might read this
// database on disk still expects max_retires, so the spelling stays at
// rest while every Go-facing type uses the corrected MaxRetries.
type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	Id         int64      `bun:"id,pk,autoincrement"`
	ExternalID *string    `bun:"external_id"`
	Command    string     `bun:"command,notnull"`
	State      job.Status `bun:"state,notnull"`
	Attempts   uint32     `bun:"attempts,notnull,default:0"`
	MaxRetires uint32     `bun:"max_retires,notnull,default:3"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (jm *jobModel) toJob() *job.Job {
	ext := ""
	if jm.ExternalID != nil {
		ext = *jm.ExternalID
	}
	return &job.Job{
		Id:         jm.Id,
		ExternalID: ext,
		Command:    jm.Command,
		Status:     jm.State,
		Attempts:   jm.Attempts,
		MaxRetries: jm.MaxRetires,
		CreatedAt:  jm.CreatedAt,
		UpdatedAt:  jm.UpdatedAt,
	}
}

// workerModel mirrors the "workers" table: one row per registered worker
// process, upserted on registration and refreshed on every heartbeat.
type workerModel struct {
	bun.BaseModel `bun:"table:workers"`

	WorkerID      string    `bun:"worker_id,pk"`
	Pid           int       `bun:"pid"`
	StartedAt     time.Time `bun:"started_at,nullzero,notnull,default:current_timestamp"`
	LastHeartbeat time.Time `bun:"last_heartbeat,nullzero"`
	Status        string    `bun:"status"`
}

// configModel mirrors the "config" table: a flat key/value store used
// for the backoff base, max_retries default, and the workers_should_stop
// flag.
type configModel struct {
	bun.BaseModel `bun:"table:config"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// eventModel mirrors the "events" table: an append-only audit log of job
// lifecycle transitions.
type eventModel struct {
	bun.BaseModel `bun:"table:events"`

	Id        int64     `bun:"id,pk,autoincrement"`
	JobID     *int64    `bun:"job_id"`
	Event     string    `bun:"event,notnull"`
	Detail    *string   `bun:"detail"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (em *eventModel) toEvent() *event.Event {
	detail := ""
	if em.Detail != nil {
		detail = *em.Detail
	}
	return &event.Event{
		Id:        em.Id,
		JobID:     em.JobID,
		Event:     em.Event,
		Detail:    detail,
		CreatedAt: em.CreatedAt,
	}
}
