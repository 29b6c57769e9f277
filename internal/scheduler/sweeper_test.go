package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"heliactyl/config"
	"heliactyl/internal/service"
)

type blockingSweep struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingSweep) Sweep(ctx context.Context) (service.SweepResult, error) {
	b.calls.Add(1)
	if b.started != nil {
		close(b.started)
		<-b.release
	}
	return service.SweepResult{Expired: 1}, nil
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

func testConfig() config.BoostConfig {
	return config.BoostConfig{SweepSchedule: "@every 1h", SweepLockTTL: time.Second}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	target := &blockingSweep{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSweeper(target, nil, testConfig(), testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-target.started

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress, got %v", err)
	}
	close(target.release)
	if err := <-done; err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if n := target.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one sweep, got %d", n)
	}

	target.started = nil
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected sweep to run after the guard is released, got %v", err)
	}
}

func TestRunOnceHonoursLock(t *testing.T) {
	target := &blockingSweep{}
	held := &stubLocker{ok: false}
	s := NewSweeper(target, held, testConfig(), testLogger())
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress when another replica holds the lock, got %v", err)
	}
	if target.calls.Load() != 0 {
		t.Fatal("sweep must not run without the lock")
	}

	free := &stubLocker{ok: true}
	s = NewSweeper(target, free, testConfig(), testLogger())
	res, err := s.RunOnce(context.Background())
	if err != nil || res.Expired != 1 {
		t.Fatalf("unexpected result %+v (err %v)", res, err)
	}
	if free.released != 1 {
		t.Fatalf("expected lock released once, got %d", free.released)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SweepSchedule = "whenever"
	s := NewSweeper(&blockingSweep{}, nil, cfg, testLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}
