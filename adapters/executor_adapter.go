// File: adapters/executor_adapter.go
// Package adapters provides glue between the reactor and its collaborators.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter decorates an api.Executor with submission accounting and
// logs rejected tasks.

package adapters

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// ExecutorStats counts submissions through an ExecutorAdapter.
type ExecutorStats struct {
	Submitted int64
	Rejected  int64
	Completed int64
}

// ExecutorAdapter wraps an api.Executor.
type ExecutorAdapter struct {
	exec      api.Executor
	log       logr.Logger
	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
}

var _ api.Executor = (*ExecutorAdapter)(nil)

// NewExecutorAdapter wraps exec.
func NewExecutorAdapter(exec api.Executor, log logr.Logger) *ExecutorAdapter {
	return &ExecutorAdapter{exec: exec, log: log.WithName("executor")}
}

// Submit forwards task and counts its completion.
func (ea *ExecutorAdapter) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("nil task: %w", api.ErrInvalidArgument)
	}
	err := ea.exec.Submit(func() {
		defer ea.completed.Add(1)
		task()
	})
	if err != nil {
		ea.rejected.Add(1)
		ea.log.V(1).Info("task rejected", "error", err.Error())
		return err
	}
	ea.submitted.Add(1)
	return nil
}

func (ea *ExecutorAdapter) NumWorkers() int { return ea.exec.NumWorkers() }

func (ea *ExecutorAdapter) Shutdown() { ea.exec.Shutdown() }

func (ea *ExecutorAdapter) AwaitTermination(d time.Duration) bool {
	return ea.exec.AwaitTermination(d)
}

func (ea *ExecutorAdapter) Close() int { return ea.exec.Close() }

// Stats returns the counters.
func (ea *ExecutorAdapter) Stats() ExecutorStats {
	return ExecutorStats{
		Submitted: ea.submitted.Load(),
		Rejected:  ea.rejected.Load(),
		Completed: ea.completed.Load(),
	}
}
