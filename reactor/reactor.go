// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor is the composite selector and its dispatch loop. One goroutine
// owns every table (registrar, selector state, lock groups); handlers only
// propose changes through buffered commands that this goroutine replays.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/reactor/lock"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

// State is the lifecycle state of a Reactor.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Reactor dispatches ready events from every registered selector.
type Reactor struct {
	cfg Config
	log logr.Logger
	obs Observer

	state  atomic.Int32
	policy atomic.Int32

	ready     *readyQueue
	registrar *Registrar
	selectors []api.SpecificSelector
	errors    *selector.ErrorSelector
	locks     *lock.Selector
	stopped   bool // selectors shut down; dispatch goroutine only

	workers  *concurrency.Executor
	blocking *concurrency.Executor

	inflight  map[api.Handler]int // dispatch goroutine only
	inflightN atomic.Int64
	idle      chan struct{}

	done         chan struct{}
	finalizeOnce sync.Once
	finalizeErr  error
}

var _ api.GracefulShutdown = (*Reactor)(nil)

// New builds a reactor with the built-in error and lock selectors and
// starts its dispatch goroutine. Further selectors are added with
// AddSelector.
func New(cfg Config) *Reactor {
	cfg.normalize()
	r := &Reactor{
		cfg:       cfg,
		log:       cfg.Logger.WithName("reactor"),
		obs:       cfg.Observer,
		ready:     newReadyQueue(),
		registrar: NewRegistrar(),
		inflight:  make(map[api.Handler]int),
		idle:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	r.policy.Store(int32(cfg.Dispatch))
	r.workers = concurrency.NewExecutor("handlers", cfg.Workers, cfg.Logger)
	r.blocking = concurrency.NewExecutor("blocking", cfg.BlockingWorkers, cfg.Logger)
	r.errors = selector.NewErrorSelector(r, cfg.Logger)
	r.locks = lock.NewSelector(r, r.busy, cfg.Logger)
	r.selectors = []api.SpecificSelector{r.errors, r.locks}
	go r.loop()
	return r
}

// BlockingPool returns the executor blocking tasks run on.
func (r *Reactor) BlockingPool() api.Executor { return r.blocking }

// State returns the lifecycle state.
func (r *Reactor) State() State { return State(r.state.Load()) }

// SetDispatchPolicy swaps the dispatch policy for subsequent events.
func (r *Reactor) SetDispatchPolicy(p DispatchPolicy) {
	r.policy.Store(int32(p))
	r.log.Info("dispatch policy changed", "policy", p)
}

// DispatchPolicy returns the current policy.
func (r *Reactor) DispatchPolicy() DispatchPolicy { return DispatchPolicy(r.policy.Load()) }

func (r *Reactor) intakeErr() error {
	switch r.State() {
	case StateRunning:
		return nil
	case StateShuttingDown:
		return api.ErrShuttingDown
	default:
		return api.ErrTerminated
	}
}

// call runs fn on the dispatch goroutine and waits for it. Must not be
// called from a handler running inline; handlers use api.Commander.
func (r *Reactor) call(fn func() error) error {
	return r.callWithin(0, fn)
}

// callWithin is call with the wait bounded by d; zero waits without bound.
func (r *Reactor) callWithin(d time.Duration, fn func() error) error {
	if r.State() == StateTerminated {
		return api.ErrTerminated
	}
	errCh := make(chan error, 1)
	if !r.ready.push(func() { errCh <- fn() }) {
		return api.ErrTerminated
	}
	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case err := <-errCh:
		return err
	case <-timeout:
		return api.ErrOperationTimeout
	case <-r.done:
		select {
		case err := <-errCh:
			return err
		default:
			return api.ErrTerminated
		}
	}
}

// AddSelector plugs sel into the composite. Selectors are consulted in the
// order they were added when routing a registration source.
func (r *Reactor) AddSelector(sel api.SpecificSelector) error {
	return r.call(func() error {
		if err := r.intakeErr(); err != nil {
			return err
		}
		for _, s := range r.selectors {
			if s == sel || s.Name() == sel.Name() {
				return fmt.Errorf("selector %s: %w", sel.Name(), api.ErrAlreadyExists)
			}
		}
		r.selectors = append(r.selectors, sel)
		return nil
	})
}

// Register binds source to handler with the given interest and returns the
// new handle.
func (r *Reactor) Register(source any, handler api.Handler, ops api.EventMask) (*api.Handle, error) {
	h := api.NewHandle()
	if err := r.call(func() error { return r.ProcessRegister(h, source, handler, ops) }); err != nil {
		return nil, err
	}
	return h, nil
}

// SetInterestOps replaces the interest of h.
func (r *Reactor) SetInterestOps(h *api.Handle, ops api.EventMask) error {
	if !ops.IsValid() {
		return fmt.Errorf("interest ops %d: %w", int32(ops), api.ErrInvalidMask)
	}
	return r.call(func() error {
		if err := r.intakeErr(); err != nil {
			return err
		}
		if !r.registrar.Contains(h) {
			return fmt.Errorf("interest ops %s: %w", h, api.ErrNotFound)
		}
		if err := r.checkScope(h, ops); err != nil {
			return err
		}
		r.ProcessInterestOps(h, ops)
		return nil
	})
}

// InterestOps returns the interest of h, api.OpUnknown if unregistered.
func (r *Reactor) InterestOps(h *api.Handle) (api.EventMask, error) {
	ops := api.OpUnknown
	err := r.call(func() error {
		if cur, ok := r.registrar.InterestOps(h); ok {
			ops = cur
		}
		return nil
	})
	return ops, err
}

// Deregister removes h. Unknown handles are ignored.
func (r *Reactor) Deregister(h *api.Handle) error {
	return r.call(func() error {
		r.ProcessDeregister(h)
		return nil
	})
}

// DeregisterHandler removes every handle of handler.
func (r *Reactor) DeregisterHandler(handler api.Handler) error {
	return r.call(func() error {
		r.ProcessDeregisterHandler(handler)
		return nil
	})
}

// IsRegistered reports whether h is known to the registrar.
func (r *Reactor) IsRegistered(h *api.Handle) (bool, error) {
	var ok bool
	err := r.call(func() error {
		ok = r.registrar.Contains(h)
		return nil
	})
	return ok, err
}

// NewLock creates a lock group over members and registers one member lock
// handle per handler. The returned group is also the registration source
// for handlers joining later.
func (r *Reactor) NewLock(members ...api.Handler) (*lock.LockHandlerGroup, []*api.Handle, error) {
	group := lock.NewLockHandlerGroup()
	handles := make([]*api.Handle, 0, len(members))
	err := r.call(func() error {
		for _, m := range members {
			h := api.NewHandle()
			if err := r.ProcessRegister(h, group, m, api.OpLock); err != nil {
				for _, done := range handles {
					r.ProcessDeregister(done)
				}
				return err
			}
			handles = append(handles, h)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return group, handles, nil
}

// Stats is a point-in-time view of the reactor.
type Stats struct {
	State      State
	Handles    int
	Handlers   int
	InFlight   int
	ReadyDepth int
	Selectors  []string
	Locks      lock.Stats
}

// Stats snapshots the tables on the dispatch goroutine. It never fails:
// once terminated it reports StateTerminated with empty tables.
func (r *Reactor) Stats() Stats {
	st := Stats{State: r.State(), ReadyDepth: r.ready.len(), InFlight: int(r.inflightN.Load())}
	_ = r.call(func() error {
		st.Handles = r.registrar.Len()
		st.Handlers = r.registrar.NumHandlers()
		for _, sel := range r.selectors {
			st.Selectors = append(st.Selectors, sel.Name())
		}
		st.Locks = r.locks.Stats()
		return nil
	})
	return st
}

func (r *Reactor) loop() {
	defer close(r.done)
	if cpu := r.cfg.DispatchCPU; cpu >= 0 {
		if err := concurrency.PinCurrentThread(cpu); err != nil {
			r.log.Error(err, "dispatch goroutine not pinned", "cpu", cpu)
		} else {
			defer concurrency.UnpinCurrentThread()
		}
	}
	for {
		item, ok := r.ready.next()
		if !ok {
			r.stopSelectors()
			return
		}
		switch it := item.(type) {
		case api.Event:
			r.dispatch(it)
		case func():
			r.runPosted(it)
		}
		r.obs.ReadyQueueDepth(r.ready.len())
	}
}

// runPosted keeps the loop alive when a posted closure panics.
func (r *Reactor) runPosted(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.ReportCriticalError(fmt.Errorf("posted task panicked: %v", p))
		}
	}()
	fn()
}

func (r *Reactor) dispatch(ev api.Event) {
	if r.State() != StateRunning {
		r.obs.EventDropped("shutting_down")
		return
	}
	handler, _, ok := r.registrar.Lookup(ev.Handle())
	if !ok {
		r.obs.EventDropped("unregistered")
		r.log.V(1).Info("dropped event for unknown handle", "event", ev)
		return
	}
	if !r.locks.Admit(handler, ev) {
		r.obs.EventHeld()
		return
	}
	onWorker := r.runOnWorker(handler)
	a := newHandlerAdapter(r, handler, ev, onWorker)
	r.inflight[handler]++
	r.inflightN.Add(1)
	r.obs.InFlight(1)
	r.obs.EventDispatched(ev.ReadyOps())
	if onWorker {
		if err := r.workers.Submit(a.Run); err == nil {
			return
		}
		a.onWorker = false
	}
	a.Run()
}

func (r *Reactor) runOnWorker(handler api.Handler) bool {
	switch r.DispatchPolicy() {
	case DispatchWorkers:
		return true
	case DispatchInline:
		return false
	}
	lr, ok := handler.(api.LongRunning)
	return ok && lr.LongRunning()
}

func (r *Reactor) busy(handler api.Handler) bool {
	return r.inflight[handler] > 0
}

// resumeSelection takes a finished adapter back onto the dispatch goroutine.
func (r *Reactor) resumeSelection(a *HandlerAdapter) {
	if a.onWorker {
		if !r.Post(func() { r.complete(a) }) {
			r.log.Info("adapter finished after termination", "handle", a.handle)
		}
		return
	}
	r.complete(a)
}

// complete applies the adapter's commands in issue order, then lets the
// originating selector re-arm or retire the handle.
func (r *Reactor) complete(a *HandlerAdapter) {
	if n := r.inflight[a.handler] - 1; n > 0 {
		r.inflight[a.handler] = n
	} else {
		delete(r.inflight, a.handler)
	}
	if r.inflightN.Add(-1) == 0 {
		select {
		case r.idle <- struct{}{}:
		default:
		}
	}
	r.obs.InFlight(-1)

	for _, cmd := range a.takeCommands() {
		r.apply(a, cmd)
	}
	if sel := r.registrar.Selector(a.handle); sel != nil && !a.EventHandleNoted(a.handle) {
		sel.ResumeSelection(a.handle)
	}
	r.locks.Quiesced(a.handler)
}

// Initiate stops intake of new registrations. In-flight adapters keep
// running and new ready events are dropped.
func (r *Reactor) Initiate() error {
	if r.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		r.log.Info("shutdown initiated")
		return nil
	}
	if r.State() == StateShuttingDown {
		return nil
	}
	return api.ErrTerminated
}

// Finalize waits for in-flight adapters and worker pools to drain within
// ShutdownFirstTimeout, allows ShutdownLastTimeout more, then forces
// termination. A forced termination is reported as a critical error and
// returned.
func (r *Reactor) Finalize() error {
	if r.State() == StateTerminated {
		return api.ErrTerminated
	}
	_ = r.Initiate()
	r.finalizeOnce.Do(func() { r.finalizeErr = r.finalize() })
	return r.finalizeErr
}

func (r *Reactor) finalize() error {
	first, last := r.cfg.ShutdownFirstTimeout, r.cfg.ShutdownLastTimeout

	drained := r.awaitIdle(first)
	halted := r.callWithin(last, func() error {
		r.stopSelectors()
		return nil
	}) == nil
	r.workers.Shutdown()
	r.blocking.Shutdown()
	pools := r.workers.AwaitTermination(first) && r.blocking.AwaitTermination(first)

	var forced error
	if !drained || !pools || !halted {
		if halted {
			drained = drained || r.awaitIdle(last)
			pools = r.workers.AwaitTermination(last) && r.blocking.AwaitTermination(last)
		}
		if !drained || !pools || !halted {
			dropped := r.workers.Close() + r.blocking.Close()
			forced = fmt.Errorf("forced termination with %d in-flight handlers and %d queued tasks, dispatch halted=%t: %w",
				r.inflightN.Load(), dropped, halted, api.ErrOperationTimeout)
			r.ReportCriticalError(forced)
		}
	}

	r.ready.close()
	if halted {
		<-r.done
	} else {
		r.log.Info("dispatch goroutine busy, leaving it to exit on its own")
	}
	r.state.Store(int32(StateTerminated))
	r.log.Info("terminated")
	return forced
}

// stopSelectors shuts every selector down once. Dispatch goroutine only.
func (r *Reactor) stopSelectors() {
	if r.stopped {
		return
	}
	r.stopped = true
	for _, sel := range r.selectors {
		sel.Shutdown()
	}
}

func (r *Reactor) awaitIdle(d time.Duration) bool {
	if r.inflightN.Load() == 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	for r.inflightN.Load() > 0 {
		select {
		case <-r.idle:
		case <-t.C:
			return r.inflightN.Load() == 0
		}
	}
	return true
}

// Shutdown runs Initiate and Finalize. ctx bounds the wait on top of the
// configured timeouts.
func (r *Reactor) Shutdown(ctx context.Context) error {
	if err := r.Initiate(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- r.Finalize() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is canceled and then shuts the reactor down.
func (r *Reactor) Run(ctx context.Context) error {
	<-ctx.Done()
	err := r.Shutdown(context.Background())
	if errors.Is(err, api.ErrTerminated) {
		return nil
	}
	return err
}
