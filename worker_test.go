package queuectl_test

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
	qsql "github.com/queuectl/queuectl/sql"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := stdsql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // important for in-memory sqlite
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := qsql.Migrate(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestWorkerProcessesJob(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	id, err := store.InsertJob(ctx, "true", 3, "")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &queuectl.WorkerConfig{PollInterval: 20 * time.Millisecond, BackoffBase: 2}
	w := queuectl.NewWorker(store, queuectl.NewExecutor(), cfg, slog.Default())

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(runCtx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.GetJob(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if j.Status == job.Completed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	j, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.Completed {
		t.Fatalf("expected completed, got %v", j.Status)
	}

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	// "false" always exits non-zero, so this job will exhaust retries and
	// land in the dead state; exercising it end to end also exercises
	// the deterministic backoff sleep between attempts.
	id, err := store.InsertJob(ctx, "false", 2, "")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &queuectl.WorkerConfig{PollInterval: 10 * time.Millisecond, BackoffBase: 1}
	w := queuectl.NewWorker(store, queuectl.NewExecutor(), cfg, slog.Default())

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(runCtx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.GetJob(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if j.Status == job.Dead {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	j, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.Dead {
		t.Fatalf("expected dead after exhausting retries, got %v (attempts=%d)", j.Status, j.Attempts)
	}
	if j.Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", j.Attempts)
	}

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerStopIsCooperative(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)

	cfg := &queuectl.WorkerConfig{PollInterval: 10 * time.Millisecond, BackoffBase: 2}
	w := queuectl.NewWorker(store, queuectl.NewExecutor(), cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	registry := queuectl.NewRegistry(store)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n, err := registry.CountActive(context.Background(), queuectl.DefaultActiveThreshold); err == nil && n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := w.Stop(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	n, err := registry.CountActive(context.Background(), queuectl.DefaultActiveThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 active workers after stop, got %d", n)
	}
}
