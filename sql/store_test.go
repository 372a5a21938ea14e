package sql_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/queuectl/queuectl/job"
	qsql "github.com/queuectl/queuectl/sql"
)

func TestInsertAndGetJob(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	id, err := store.InsertJob(ctx, "echo hi", 3, "ext-1")
	if err != nil {
		t.Fatal(err)
	}

	j, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.Pending {
		t.Fatalf("expected pending, got %v", j.Status)
	}
	if j.MaxRetries != 3 || j.ExternalID != "ext-1" {
		t.Fatalf("unexpected job: %+v", j)
	}

	byExt, err := store.GetJobByExternalID(ctx, "ext-1")
	if err != nil {
		t.Fatal(err)
	}
	if byExt.Id != id {
		t.Fatalf("expected id %d, got %d", id, byExt.Id)
	}
}

func TestClaimNextOrdersByCreationAndGuardsAgainstDoubleClaim(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	first, _ := store.InsertJob(ctx, "first", 3, "")
	time.Sleep(5 * time.Millisecond)
	_, _ = store.InsertJob(ctx, "second", 3, "")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.Id != first {
		t.Fatalf("expected to claim the oldest job (%d), got %+v", first, claimed)
	}
	if claimed.Status != job.Processing {
		t.Fatalf("expected processing, got %v", claimed.Status)
	}

	again, err := store.GetJob(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != job.Processing {
		t.Fatalf("claimed row did not persist as processing: %v", again.Status)
	}

	next, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.Id == first || next.Command != "second" {
		t.Fatalf("expected the second claim to skip the already-claimed job, got %+v", next)
	}
}

func TestClaimNextReturnsNilWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	j, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Fatalf("expected no job, got %+v", j)
	}
}

func TestCompleteRetryKill(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	id, _ := store.InsertJob(ctx, "cmd", 3, "")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}

	if err := store.Retry(ctx, id, 1); err != nil {
		t.Fatal(err)
	}
	j, _ := store.GetJob(ctx, id)
	if j.Status != job.Pending || j.Attempts != 1 {
		t.Fatalf("unexpected state after retry: %+v", j)
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Kill(ctx, id, 3); err != nil {
		t.Fatal(err)
	}
	j, _ = store.GetJob(ctx, id)
	if j.Status != job.Dead {
		t.Fatalf("expected dead, got %v", j.Status)
	}

	ok, err := store.DLQRetry(ctx, "no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match for an unrelated identifier")
	}

	doneID, _ := store.InsertJob(ctx, "cmd", 3, "")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete(ctx, doneID); err != nil {
		t.Fatal(err)
	}
	j, _ = store.GetJob(ctx, doneID)
	if j.Status != job.Completed {
		t.Fatalf("expected completed, got %v", j.Status)
	}
}

func TestDLQRetryByNumericAndExternalID(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	id, _ := store.InsertJob(ctx, "cmd", 1, "ext-2")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Kill(ctx, id, 1); err != nil {
		t.Fatal(err)
	}

	ok, err := store.DLQRetry(ctx, "ext-2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected DLQ retry by external id to succeed")
	}
	j, _ := store.GetJob(ctx, id)
	if j.Status != job.Pending || j.Attempts != 0 {
		t.Fatalf("expected reset pending job, got %+v", j)
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Kill(ctx, id, 1); err != nil {
		t.Fatal(err)
	}
	ok, err = store.DLQRetry(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected DLQ retry by numeric id to succeed")
	}
	j, _ = store.GetJob(ctx, id)
	if j.Status != job.Pending || j.Attempts != 0 {
		t.Fatalf("expected reset pending job, got %+v", j)
	}
}

func TestCountsByStateIncludesZeroes(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	_, _ = store.InsertJob(ctx, "cmd", 3, "")

	counts, err := store.CountsByState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range job.All() {
		if _, ok := counts[st]; !ok {
			t.Fatalf("missing state %v in counts", st)
		}
	}
	if counts[job.Pending] != 1 {
		t.Fatalf("expected 1 pending, got %d", counts[job.Pending])
	}
}

func TestPurgeRejectsNonTerminalStatus(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	if _, err := store.Purge(ctx, job.Pending, nil); err == nil {
		t.Fatal("expected ErrBadStatus for a non-terminal status")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	if _, ok, _ := store.ConfigGet(ctx, "backoff"); ok {
		t.Fatal("expected no value before set")
	}
	if err := store.ConfigSet(ctx, "backoff", "2"); err != nil {
		t.Fatal(err)
	}
	val, ok, err := store.ConfigGet(ctx, "backoff")
	if err != nil || !ok || val != "2" {
		t.Fatalf("unexpected config value: %q %v %v", val, ok, err)
	}
	if err := store.ConfigSet(ctx, "backoff", "4"); err != nil {
		t.Fatal(err)
	}
	val, _, _ = store.ConfigGet(ctx, "backoff")
	if val != "4" {
		t.Fatalf("expected upsert to overwrite, got %q", val)
	}
}

func TestWorkerRegistrationAndLiveness(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	if err := store.RegisterWorker(ctx, "w1", 123); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountActiveWorkers(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 active worker, got %d", n)
	}

	if err := store.Heartbeat(ctx, "w1", "stopped"); err != nil {
		t.Fatal(err)
	}
	n, err = store.CountActiveWorkers(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 active workers after stop heartbeat, got %d", n)
	}
}

func TestEventLog(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	id, _ := store.InsertJob(ctx, "cmd", 3, "")
	if err := store.AddEvent(ctx, &id, "enqueued", "cmd=cmd, max_retires=3"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddEvent(ctx, &id, "processing", ""); err != nil {
		t.Fatal(err)
	}

	events, err := store.ListEvents(ctx, &id, 0, "asc")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "enqueued" || events[1].Event != "processing" {
		t.Fatalf("unexpected event order: %+v", events)
	}
}
