package tasks

import (
	"context"
	"fmt"
)

// Handle tracks one asynchronous unit of work started with [Go].
type Handle[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Go runs fn on its own goroutine and returns a handle to its completion.
// A panicking unit is surfaced to waiters as an error.
func Go[T any](fn func() (T, error)) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		h.result, h.err = fn()
	}()
	return h
}

// Wait suspends the caller until the unit completes or ctx is cancelled.
// Cancellation abandons the waiter; the unit itself keeps running.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

// Done reports whether the unit has completed, without blocking.
func (h *Handle[T]) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result blocks until completion and returns the unit's outcome.
func (h *Handle[T]) Result() (T, error) {
	<-h.done
	return h.result, h.err
}
