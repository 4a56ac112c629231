// Package tasks provides the background task handle primitive used for all
// long-running asynchronous work (metadata resolution, fragment downloads).
//
// A [Handle] wraps one unit of work started with [Go]. The unit executes on
// its own goroutine, so slow network I/O never blocks the caller. Any number
// of callers may [Handle.Wait] concurrently; all of them observe the same
// result, including the same failure if the unit failed. A handle never
// retries its unit.
package tasks
