package lifecycle

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"taskline/internal/logging"
)

func TestManager_ContextCancelRunsShutdownInReverse(t *testing.T) {
	mgr := NewManager(logging.Discard())
	var mu sync.Mutex
	steps := make([]string, 0, 4)
	appendStep := func(v string) {
		mu.Lock()
		steps = append(steps, v)
		mu.Unlock()
	}

	started := make(chan struct{})
	mgr.AddRun("http", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		appendStep("run-http-stopped")
		return nil
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		appendStep("close-db")
		return nil
	})
	mgr.AddShutdown("http-shutdown", func(context.Context) error {
		appendStep("http-shutdown")
		return nil
	})

	parent, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mgr.StartAndWait(parent)
	}()
	<-started
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("StartAndWait should not fail: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"run-http-stopped", "http-shutdown", "close-db"}
	if !slices.Equal(steps, want) {
		t.Fatalf("unexpected steps: got %#v want %#v", steps, want)
	}
}

func TestManager_RunErrorTriggersShutdown(t *testing.T) {
	mgr := NewManager(logging.Discard())
	runErr := errors.New("boom")
	shutdownCalled := 0

	mgr.AddRun("http", func(context.Context) error {
		return runErr
	})
	mgr.AddRun("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	mgr.AddShutdown("close-db", func(context.Context) error {
		shutdownCalled++
		return nil
	})

	err := mgr.StartAndWait(context.Background())
	if !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if shutdownCalled != 1 {
		t.Fatalf("expected shutdown called once, got %d", shutdownCalled)
	}
}

func TestManager_ShutdownErrorsAreJoinedAndBounded(t *testing.T) {
	mgr := NewManager(logging.Discard())
	mgr.SetShutdownTimeout(20 * time.Millisecond)
	closeErr := errors.New("close failed")
	ranAfter := false

	mgr.AddShutdown("later", func(context.Context) error {
		ranAfter = true
		return nil
	})
	mgr.AddShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	mgr.AddShutdown("broken", func(context.Context) error {
		return closeErr
	})

	err := mgr.StartAndWait(context.Background())
	if !errors.Is(err, closeErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected joined shutdown errors, got %v", err)
	}
	if !ranAfter {
		t.Fatal("expected remaining shutdown jobs to run after a failure")
	}
}
