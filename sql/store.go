package sql

import (
	"context"
	stdsql "database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/event"
	"github.com/queuectl/queuectl/job"
)

// Store implements queuectl.Store using a SQL backend via bun.
//
// Store's single correctness-critical operation is ClaimNext, which runs
// inside an immediate write transaction: it selects the oldest Pending
// row and updates it to Processing guarded by a WHERE state='pending'
// predicate, then inspects rows-affected to detect a lost race against a
// concurrent claimer. Every other method is a plain read or write run
// without an explicit transaction; DLQRetry by external id is a lookup
// followed by a separate update.
type Store struct {
	db *bun.DB
}

// NewStore creates a Store over db. The caller must run Migrate before
// using it.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var _ queuectl.Store = (*Store)(nil)

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) InsertJob(ctx context.Context, command string, maxRetries uint32, externalID string) (int64, error) {
	model := &jobModel{
		Command:    command,
		State:      job.Pending,
		MaxRetires: maxRetries,
		ExternalID: optString(externalID),
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	return model.Id, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (*job.Job, error) {
	var m jobModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, err
	}
	return m.toJob(), nil
}

func (s *Store) GetJobByExternalID(ctx context.Context, externalID string) (*job.Job, error) {
	var m jobModel
	err := s.db.NewSelect().Model(&m).Where("external_id = ?", externalID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, err
	}
	return m.toJob(), nil
}

func (s *Store) ListJobs(ctx context.Context, status job.Status) ([]*job.Job, error) {
	var rows []*jobModel
	q := s.db.NewSelect().Model(&rows).Order("created_at ASC", "id ASC")
	if status != "" {
		q = q.Where("state = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*job.Job, len(rows))
	for i, r := range rows {
		ret[i] = r.toJob()
	}
	return ret, nil
}

func (s *Store) ListDeadJobs(ctx context.Context) ([]*job.Job, error) {
	var rows []*jobModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("state = ?", job.Dead).
		Order("updated_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]*job.Job, len(rows))
	for i, r := range rows {
		ret[i] = r.toJob()
	}
	return ret, nil
}

func (s *Store) CountsByState(ctx context.Context) (map[job.Status]int64, error) {
	ret := make(map[job.Status]int64, len(job.All()))
	for _, st := range job.All() {
		ret[st] = 0
	}
	var rows []struct {
		State job.Status `bun:"state"`
		Count int64       `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*jobModel)(nil)).
		ColumnExpr("state").
		ColumnExpr("count(*) AS count").
		Group("state").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		ret[r.State] = r.Count
	}
	return ret, nil
}

// ClaimNext implements the six-step claim algorithm (spec.md §4.C): begin
// an immediate transaction, select the oldest pending row, predicate-
// guard the UPDATE to processing, and check rows-affected to detect a
// lost race. An empty queue or a lost race returns (nil, nil); any other
// error rolls back and is returned to the caller with a nil job.
//
// BeginTx itself asks for no special SQLite isolation: the write lock is
// acquired up front because the connection DSN carries _txlock=immediate
// (see cmd/queuectl/main.go and the sql test helpers), which makes every
// transaction on this connection a BEGIN IMMEDIATE. Without that, SQLite
// would open a DEFERRED transaction here, letting the SELECT take only a
// read lock that two concurrent claimers could both hold — and then
// deadlock upgrading to a write lock for the UPDATE, which busy_timeout
// cannot resolve since it's contention between two already-open
// transactions, not a single writer waiting on another.
func (s *Store) ClaimNext(ctx context.Context) (*job.Job, error) {
	tx, err := s.db.BeginTx(ctx, &stdsql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var candidate jobModel
	err = tx.NewSelect().
		Model(&candidate).
		Where("state = ?", job.Pending).
		Order("created_at ASC", "id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, tx.Commit()
		}
		return nil, err
	}

	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Processing).
		Set("updated_at = ?", now).
		Where("id = ?", candidate.Id).
		Where("state = ?", job.Pending).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if !isAffected(res) {
		// Lost the race to a concurrent claimer; not an error.
		return nil, tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	candidate.State = job.Processing
	candidate.UpdatedAt = now
	return candidate.toJob(), nil
}

func (s *Store) Complete(ctx context.Context, id int64) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Completed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return queuectl.ErrJobNotFound
	}
	return nil
}

func (s *Store) Retry(ctx context.Context, id int64, nextAttempts uint32) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("attempts = ?", nextAttempts).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return queuectl.ErrJobNotFound
	}
	return nil
}

func (s *Store) Kill(ctx context.Context, id int64, nextAttempts uint32) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Dead).
		Set("attempts = ?", nextAttempts).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return queuectl.ErrJobNotFound
	}
	return nil
}

func (s *Store) DLQRetry(ctx context.Context, identifier string) (bool, error) {
	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		j, lookupErr := s.GetJobByExternalID(ctx, identifier)
		if lookupErr != nil {
			if errors.Is(lookupErr, queuectl.ErrJobNotFound) {
				return false, nil
			}
			return false, lookupErr
		}
		id = j.Id
	}
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("attempts = 0").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", job.Dead).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

func (s *Store) Purge(ctx context.Context, status job.Status, before *time.Time) (int64, error) {
	if status != "" && status != job.Completed && status != job.Dead {
		return 0, queuectl.ErrBadStatus
	}
	q := s.db.NewDelete().Model((*jobModel)(nil))
	if status != "" {
		q = q.Where("state = ?", status)
	} else {
		q = q.Where("state IN (?, ?)", job.Completed, job.Dead)
	}
	if before != nil {
		q = q.Where("updated_at <= ?", before)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

func (s *Store) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	var m configModel
	err := s.db.NewSelect().Model(&m).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return m.Value, true, nil
}

func (s *Store) ConfigSet(ctx context.Context, key, value string) error {
	_, err := s.db.NewInsert().
		Model(&configModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

func (s *Store) RegisterWorker(ctx context.Context, workerID string, pid int) error {
	now := time.Now()
	_, err := s.db.NewInsert().
		Model(&workerModel{WorkerID: workerID, Pid: pid, StartedAt: now, LastHeartbeat: now, Status: "running"}).
		On("CONFLICT (worker_id) DO UPDATE").
		Set("pid = EXCLUDED.pid").
		Set("started_at = EXCLUDED.started_at").
		Set("last_heartbeat = EXCLUDED.last_heartbeat").
		Set("status = 'running'").
		Exec(ctx)
	return err
}

func (s *Store) Heartbeat(ctx context.Context, workerID string, status string) error {
	_, err := s.db.NewUpdate().
		Model((*workerModel)(nil)).
		Set("last_heartbeat = ?", time.Now()).
		Set("status = ?", status).
		Where("worker_id = ?", workerID).
		Exec(ctx)
	return err
}

func (s *Store) CountActiveWorkers(ctx context.Context, thresholdSeconds int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(thresholdSeconds) * time.Second)
	count, err := s.db.NewSelect().
		Model((*workerModel)(nil)).
		Where("status = ?", "running").
		Where("last_heartbeat >= ?", cutoff).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) AddEvent(ctx context.Context, jobID *int64, evt string, detail string) error {
	_, err := s.db.NewInsert().
		Model(&eventModel{JobID: jobID, Event: evt, Detail: optString(detail)}).
		Exec(ctx)
	return err
}

func (s *Store) ListEvents(ctx context.Context, jobID *int64, limit int, order string) ([]*event.Event, error) {
	dir := "DESC"
	if order == "asc" {
		dir = "ASC"
	}
	var rows []*eventModel
	q := s.db.NewSelect().Model(&rows).OrderExpr("created_at " + dir + ", id " + dir)
	if jobID != nil {
		q = q.Where("job_id = ?", *jobID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*event.Event, len(rows))
	for i, r := range rows {
		ret[i] = r.toEvent()
	}
	return ret, nil
}
