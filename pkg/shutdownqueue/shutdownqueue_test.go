package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// resetQueue clears the global queue between tests.
func resetQueue(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		q.mu.Lock()
		q.tasks = nil
		q.closed = false
		q.mu.Unlock()
	})
}

//nolint:paralleltest // shares the package-level queue
func TestAddNilTaskIsNoop(t *testing.T) {
	resetQueue(t)

	Add(nil)

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("expected nil after adding nil task; got %v", err)
	}
}

//nolint:paralleltest
func TestLIFOOrder(t *testing.T) {
	resetQueue(t)

	var order []int

	for i := 1; i <= 3; i++ {
		n := i
		Add(func(context.Context) error {
			order = append(order, n)
			return nil
		})
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []int{3, 2, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: want %v, got %v", want, order)
		}
	}
}

//nolint:paralleltest
func TestShutdownIdempotent(t *testing.T) {
	resetQueue(t)

	var runs int

	Add(func(context.Context) error {
		runs++
		return nil
	})

	if err := Shutdown(t.Context()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := Shutdown(t.Context()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	if runs != 1 {
		t.Fatalf("task ran %d times, want 1", runs)
	}
}

//nolint:paralleltest
func TestAddAfterShutdownDropped(t *testing.T) {
	resetQueue(t)

	if err := Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	var ran bool

	Add(func(context.Context) error {
		ran = true
		return nil
	})

	if err := Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown after add: %v", err)
	}

	if ran {
		t.Fatal("task added after shutdown must not run")
	}
}

//nolint:paralleltest
func TestErrorsAreJoined(t *testing.T) {
	resetQueue(t)

	errA := errors.New("task a failed")
	errB := errors.New("task b failed")

	Add(func(context.Context) error { return errA })
	Add(func(context.Context) error { return errB })

	err := Shutdown(t.Context())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("joined error missing parts: %v", err)
	}
}

//nolint:paralleltest
func TestPanicRecovered(t *testing.T) {
	resetQueue(t)

	Add(func(context.Context) error { panic("boom") })

	err := Shutdown(t.Context())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("want panic reported as error, got %v", err)
	}
}

//nolint:paralleltest
func TestCanceledContextStopsDrain(t *testing.T) {
	resetQueue(t)

	var ran bool

	Add(func(context.Context) error {
		ran = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Shutdown(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled in error, got %v", err)
	}

	if ran {
		t.Fatal("task must not run under a canceled context")
	}
}
