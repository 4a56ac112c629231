package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHandle(t *testing.T) {
	t.Run("ConcurrentWaitersSameResult", func(t *testing.T) {
		release := make(chan struct{})
		h := Go(func() (int, error) {
			<-release
			return 42, nil
		})

		var wg sync.WaitGroup
		results := make([]int, 8)
		errs := make([]error, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = h.Wait(context.Background())
			}()
		}

		close(release)
		wg.Wait()

		for i := range 8 {
			if errs[i] != nil {
				t.Fatalf("waiter %d got error: %v", i, errs[i])
			}
			if results[i] != 42 {
				t.Errorf("waiter %d got %d, want 42", i, results[i])
			}
		}
	})

	t.Run("ConcurrentWaitersSameFailure", func(t *testing.T) {
		boom := errors.New("boom")
		h := Go(func() (string, error) {
			return "", boom
		})

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.Wait(context.Background())
			}()
		}
		wg.Wait()

		for i := range 4 {
			if !errors.Is(errs[i], boom) {
				t.Errorf("waiter %d got %v, want boom", i, errs[i])
			}
		}
	})

	t.Run("DonePolling", func(t *testing.T) {
		release := make(chan struct{})
		h := Go(func() (struct{}, error) {
			<-release
			return struct{}{}, nil
		})

		if h.Done() {
			t.Error("handle reported done before unit finished")
		}

		close(release)
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
		if !h.Done() {
			t.Error("handle should report done after completion")
		}
	})

	t.Run("WaitCancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		h := Go(func() (int, error) {
			<-release
			return 1, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("PanicSurfacesAsError", func(t *testing.T) {
		h := Go(func() (int, error) {
			panic("unit exploded")
		})

		if _, err := h.Wait(context.Background()); err == nil {
			t.Error("expected error from panicking unit")
		}
	})

	t.Run("Result", func(t *testing.T) {
		h := Go(func() (string, error) {
			return "ready", nil
		})

		v, err := h.Result()
		if err != nil {
			t.Fatalf("result failed: %v", err)
		}
		if v != "ready" {
			t.Errorf("got %q, want ready", v)
		}
	})
}
