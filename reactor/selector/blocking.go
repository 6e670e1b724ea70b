// File: reactor/selector/blocking.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BlockingSelector runs user tasks on the blocking pool and reports their
// completion as a single OpBlocking event per registration.

package selector

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
)

// BlockingTask is work that may block. ctx is canceled when its handle is
// deregistered or the selector shuts down.
type BlockingTask func(ctx context.Context) (any, error)

// BlockingResult is the outcome of one task.
type BlockingResult struct {
	Value any
	Err   error
}

// BlockingTaskSet joins several tasks into one event. The event payload is
// a []BlockingResult in task order.
type BlockingTaskSet struct {
	tasks     []BlockingTask
	results   []BlockingResult
	remaining atomic.Int32
}

// NewBlockingTaskSet returns a set over tasks. A set is registered once.
func NewBlockingTaskSet(tasks ...BlockingTask) *BlockingTaskSet {
	return &BlockingTaskSet{tasks: tasks}
}

// Len returns the number of tasks.
func (ts *BlockingTaskSet) Len() int { return len(ts.tasks) }

type blockingEntry struct {
	set    *BlockingTaskSet
	cancel context.CancelFunc
}

// BlockingSelector serves BlockingTask and *BlockingTaskSet sources.
type BlockingSelector struct {
	composite api.Composite
	pool      api.Executor
	log       logr.Logger
	gen       *EventGeneration
	entries   map[*api.Handle]*blockingEntry
}

var _ api.SpecificSelector = (*BlockingSelector)(nil)

// NewBlockingSelector returns a selector running tasks on pool.
func NewBlockingSelector(c api.Composite, pool api.Executor, log logr.Logger) *BlockingSelector {
	return &BlockingSelector{
		composite: c,
		pool:      pool,
		log:       log.WithName("blocking"),
		gen:       NewEventGeneration(c),
		entries:   make(map[*api.Handle]*blockingEntry),
	}
}

func (s *BlockingSelector) Name() string { return "blocking" }

func (s *BlockingSelector) SupportedOps() api.EventMask { return api.OpBlocking }

func (s *BlockingSelector) Accepts(source any) bool {
	switch source.(type) {
	case BlockingTask, func(context.Context) (any, error), *BlockingTaskSet:
		return true
	}
	return false
}

// Register submits the task (or every task of the set) to the pool.
func (s *BlockingSelector) Register(h *api.Handle, source any, handler api.Handler, ops api.EventMask) error {
	if ops&^s.SupportedOps() != 0 {
		return fmt.Errorf("blocking ops %s: %w", ops, api.ErrInvalidMask)
	}
	if fn, ok := source.(func(context.Context) (any, error)); ok {
		source = BlockingTask(fn)
	}
	var set *BlockingTaskSet
	switch src := source.(type) {
	case BlockingTask:
		if src == nil {
			return fmt.Errorf("blocking task: %w", api.ErrInvalidArgument)
		}
		set = NewBlockingTaskSet(src)
	case *BlockingTaskSet:
		if src == nil || len(src.tasks) == 0 {
			return fmt.Errorf("blocking task set: %w", api.ErrInvalidArgument)
		}
		if s.IsSourceRegistered(src) {
			return fmt.Errorf("blocking task set: %w", api.ErrAlreadyExists)
		}
		set = src
	default:
		return fmt.Errorf("blocking source %T: %w", source, api.ErrInvalidArgument)
	}

	ctx, cancel := context.WithCancel(context.Background())
	set.results = make([]BlockingResult, len(set.tasks))
	set.remaining.Store(int32(len(set.tasks)))
	s.gen.Add(h, ops)
	s.entries[h] = &blockingEntry{set: set, cancel: cancel}

	_, single := source.(BlockingTask)
	for i, task := range set.tasks {
		i, task := i, task
		err := s.pool.Submit(func() {
			v, err := runTask(ctx, task)
			set.results[i] = BlockingResult{Value: v, Err: err}
			if set.remaining.Add(-1) == 0 {
				s.composite.Post(func() { s.complete(h, set, single) })
			}
		})
		if err != nil {
			cancel()
			s.gen.Remove(h)
			delete(s.entries, h)
			return fmt.Errorf("blocking submit: %w", err)
		}
	}
	return nil
}

func runTask(ctx context.Context, task BlockingTask) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("blocking task panicked: %v", p)
		}
	}()
	return task(ctx)
}

// complete runs on the dispatch goroutine once every task finished.
func (s *BlockingSelector) complete(h *api.Handle, set *BlockingTaskSet, single bool) {
	e, ok := s.entries[h]
	if !ok || e.set != set {
		return
	}
	var info any = set.results
	if single {
		info = set.results[0]
	}
	s.gen.Checkin(h, api.NewEvent(h, api.OpBlocking, info))
	s.gen.ResumeSelection(h)
}

func (s *BlockingSelector) IsRegistered(h *api.Handle) bool { return s.gen.Contains(h) }

// IsSourceRegistered is always false for a BlockingTask: functions have no
// identity to compare.
func (s *BlockingSelector) IsSourceRegistered(source any) bool {
	set, ok := source.(*BlockingTaskSet)
	if !ok {
		return false
	}
	for _, e := range s.entries {
		if e.set == set {
			return true
		}
	}
	return false
}

func (s *BlockingSelector) InterestOps(h *api.Handle, ops api.EventMask) { s.gen.InterestOps(h, ops) }

// Deregister cancels the tasks of h. A late completion is ignored.
func (s *BlockingSelector) Deregister(h *api.Handle) {
	if e, ok := s.entries[h]; ok {
		e.cancel()
		delete(s.entries, h)
	}
	s.gen.Remove(h)
}

func (s *BlockingSelector) Checkin(h *api.Handle, ev api.Event) { s.gen.Checkin(h, ev) }

func (s *BlockingSelector) ResumeSelection(h *api.Handle) { s.gen.ResumeSelection(h) }

func (s *BlockingSelector) Shutdown() {
	for h, e := range s.entries {
		e.cancel()
		s.gen.Remove(h)
	}
	s.entries = make(map[*api.Handle]*blockingEntry)
}
