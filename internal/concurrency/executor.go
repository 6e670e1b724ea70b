// File: internal/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor runs tasks on a fixed set of worker goroutines fed from an
// unbounded FIFO. Shutdown is two-phase: Shutdown stops intake and lets
// workers drain, Close abandons whatever is still queued.

package concurrency

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	name string
	log  logr.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	tasks    *queue.Queue // of TaskFunc
	active   int
	shutdown bool // intake stopped, drain in progress
	forced   bool // workers exit without draining

	numWorkers int
	wg         sync.WaitGroup
	doneOnce   sync.Once
	doneCh     chan struct{} // closed once every worker exited
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates a new Executor with the given number of workers.
// numWorkers <= 0 selects runtime.NumCPU().
func NewExecutor(name string, numWorkers int, log logr.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		name:       name,
		log:        log.WithName("executor").WithValues("pool", name),
		tasks:      queue.New(),
		numWorkers: numWorkers,
		doneCh:     make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for i := 0; i < numWorkers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	go func() {
		e.wg.Wait()
		e.doneOnce.Do(func() { close(e.doneCh) })
	}()
	return e
}

// Submit enqueues a task. Returns api.ErrExecutorClosed after Shutdown.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("executor %s: nil task: %w", e.name, api.ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown || e.forced {
		return fmt.Errorf("executor %s: %w", e.name, api.ErrExecutorClosed)
	}
	e.tasks.Add(TaskFunc(task))
	e.cond.Signal()
	return nil
}

// NumWorkers returns the worker count.
func (e *Executor) NumWorkers() int {
	return e.numWorkers
}

// Pending returns queued plus running tasks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Length() + e.active
}

// Shutdown stops intake. Workers exit once the queue is empty.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// AwaitTermination waits up to d for all workers to exit.
func (e *Executor) AwaitTermination(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-e.doneCh:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.doneCh:
		return true
	case <-t.C:
		return false
	}
}

// Close forces termination and returns how many queued tasks were dropped.
// Tasks already running keep their goroutine until they return.
func (e *Executor) Close() int {
	e.mu.Lock()
	e.shutdown = true
	e.forced = true
	dropped := e.tasks.Length()
	for e.tasks.Length() > 0 {
		e.tasks.Remove()
	}
	e.mu.Unlock()
	e.cond.Broadcast()
	if dropped > 0 {
		e.log.Info("dropped queued tasks on forced close", "dropped", dropped)
	}
	return dropped
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.tasks.Length() == 0 && !e.shutdown {
			e.cond.Wait()
		}
		if e.forced || e.tasks.Length() == 0 {
			e.mu.Unlock()
			return
		}
		task := e.tasks.Remove().(TaskFunc)
		e.active++
		e.mu.Unlock()

		e.safeExecute(id, task)

		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}
}

// safeExecute keeps the worker alive when a task panics.
func (e *Executor) safeExecute(id int, task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(fmt.Errorf("%v", r), "task panicked", "worker", id)
		}
	}()
	task()
}
