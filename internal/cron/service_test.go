package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commercecore/storefront-backend/pkg/logger"
)

type stubLock struct {
	held     bool
	acquires int
	releases int
	err      error
}

func (l *stubLock) Acquire(ctx context.Context) (bool, error) {
	l.acquires++
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *stubLock) Release(ctx context.Context) error {
	l.releases++
	return nil
}

func TestServiceRunCycleRunsAllJobs(t *testing.T) {
	t.Parallel()

	first := &namedJob{name: "first"}
	second := &namedJob{name: "second", err: errors.New("boom")}
	third := &namedJob{name: "third"}
	lock := &stubLock{}

	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(first, second, third),
		Lock:     lock,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	// A failing job never stops the jobs after it.
	if first.runs != 1 || second.runs != 1 || third.runs != 1 {
		t.Fatalf("all jobs should run once: %d %d %d", first.runs, second.runs, third.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("lock should be released once, got %d", lock.releases)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &namedJob{name: "only"}
	lock := &stubLock{held: true}

	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("jobs must not run while another instance holds the lock")
	}
	if lock.releases != 0 {
		t.Fatal("an unheld lock must not be released")
	}
}

func TestServiceRunCyclePropagatesLockError(t *testing.T) {
	t.Parallel()

	lock := &stubLock{err: errors.New("redis down")}
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Lock:   lock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error to surface")
	}
}

func TestServiceRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	job := &namedJob{name: "only"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(job),
		Lock:     &stubLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The first cycle runs before the ticker, even with a canceled context
	// the loop exits right after it.
	if job.runs != 1 {
		t.Fatalf("expected exactly one run, got %d", job.runs)
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewService(ServiceParams{Lock: &stubLock{}}); err == nil {
		t.Fatal("expected error for missing logger")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error for missing lock")
	}
}
