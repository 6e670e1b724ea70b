// Package api
// Author: momentics
//
// Executor contract for the worker pools handlers and blocking tasks run on.

package api

import "time"

// Executor abstracts a bounded worker pool with two-phase shutdown.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error

	// NumWorkers returns current number of worker routines.
	NumWorkers() int

	// Shutdown stops intake; queued and running tasks still complete.
	Shutdown()

	// AwaitTermination waits up to d for every task to finish and reports
	// whether the pool drained.
	AwaitTermination(d time.Duration) bool

	// Close forces termination: queued tasks are discarded and the number
	// discarded is returned. Running tasks cannot be interrupted.
	Close() int
}
