package queuectl_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
)

// stubStore implements queuectl.Store with only Purge wired; every other
// method panics if called, which is fine for tests that only exercise
// CleanWorker.
type stubStore struct {
	queuectl.Store
	purges atomic.Int64
}

func (s *stubStore) Purge(ctx context.Context, status job.Status, before *time.Time) (int64, error) {
	s.purges.Add(1)
	return 1, nil
}

var _ queuectl.Store = (*stubStore)(nil)

func TestCleanWorkerBasic(t *testing.T) {
	store := &stubStore{}
	logger := slog.Default()

	cfg := &queuectl.CleanConfig{
		Status:   job.Completed,
		Interval: 50 * time.Millisecond,
		Before:   false,
	}

	w := queuectl.NewCleanWorker(store, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	time.Sleep(150 * time.Millisecond)

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if store.purges.Load() == 0 {
		t.Fatal("expected purge to run at least once")
	}
}

func TestCleanWorkerLifecycleErrors(t *testing.T) {
	store := &stubStore{}
	logger := slog.Default()

	cfg := &queuectl.CleanConfig{
		Status:   job.Dead,
		Interval: time.Second,
	}

	w := queuectl.NewCleanWorker(store, cfg, logger)

	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := w.Start(ctx); err == nil {
		t.Fatal("expected ErrDoubleStarted")
	}

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if err := w.Stop(time.Second); err == nil {
		t.Fatal("expected ErrDoubleStopped")
	}
}
