// File: reactor/composite.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The composite side of the reactor: the ready queue every selector feeds
// and the Process* boundary selectors call back into. Process* methods run
// on the dispatch goroutine only.

package reactor

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor/selector"
)

// readyQueue is an unbounded FIFO of api.Event and func() items with a
// blocking take for the single dispatch goroutine.
type readyQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	signal chan struct{}
	closed bool
}

func newReadyQueue() *readyQueue {
	return &readyQueue{items: queue.New(), signal: make(chan struct{}, 1)}
}

func (q *readyQueue) push(item any) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Add(item)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until an item is available or the queue is closed.
func (q *readyQueue) next() (any, bool) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove()
			q.mu.Unlock()
			return item, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *readyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// close stops intake and wakes the consumer. Items already queued are
// discarded.
func (q *readyQueue) close() {
	q.mu.Lock()
	q.closed = true
	for q.items.Length() > 0 {
		q.items.Remove()
	}
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

var _ api.Composite = (*Reactor)(nil)

// AddReadyEvent queues ev for dispatch. Safe for concurrent use.
func (r *Reactor) AddReadyEvent(ev api.Event) {
	if !r.ready.push(ev) {
		r.obs.EventDropped("closed")
	}
}

// Post runs fn on the dispatch goroutine.
func (r *Reactor) Post(fn func()) bool {
	return r.ready.push(fn)
}

// Handler returns the owner of h.
func (r *Reactor) Handler(h *api.Handle) api.Handler {
	return r.registrar.Handler(h)
}

// ProcessRegister binds h to the selector that accepts source.
func (r *Reactor) ProcessRegister(h *api.Handle, source any, handler api.Handler, ops api.EventMask) error {
	if err := r.intakeErr(); err != nil {
		return err
	}
	if h == nil || handler == nil || source == nil {
		return fmt.Errorf("register: %w", api.ErrInvalidArgument)
	}
	if !reflect.TypeOf(handler).Comparable() {
		return fmt.Errorf("register: handler %T is not comparable: %w", handler, api.ErrInvalidArgument)
	}
	if !ops.IsValid() {
		return fmt.Errorf("register %s ops %d: %w", h, int32(ops), api.ErrInvalidMask)
	}
	sel := r.selectorFor(source)
	if sel == nil {
		return fmt.Errorf("register source %T: %w", source, api.ErrNotSupported)
	}
	if err := r.registrar.Add(h, handler, sel, ops); err != nil {
		return err
	}
	if err := sel.Register(h, source, handler, ops); err != nil {
		r.registrar.Remove(h)
		return fmt.Errorf("%s register: %w", sel.Name(), err)
	}
	r.log.V(1).Info("registered", "handle", h, "selector", sel.Name(), "ops", ops)
	return nil
}

// ProcessInterestOps replaces the interest of h. Unknown handles are ignored.
func (r *Reactor) ProcessInterestOps(h *api.Handle, ops api.EventMask) {
	sel := r.registrar.Selector(h)
	if sel == nil {
		return
	}
	r.registrar.SetInterestOps(h, ops)
	sel.InterestOps(h, ops)
}

// ProcessDeregister removes h from the registrar and its selector. When the
// handler is left with nothing but its error handle, that goes too.
func (r *Reactor) ProcessDeregister(h *api.Handle) {
	handler, sel, ok := r.registrar.Lookup(h)
	if !ok {
		return
	}
	gone := r.registrar.Remove(h)
	sel.Deregister(h)
	r.locks.Forget(h)
	r.log.V(1).Info("deregistered", "handle", h, "selector", sel.Name())
	if gone {
		return
	}
	if eh, ok := r.errors.HandleOf(handler); ok && eh != h && r.registrar.NumHandles(handler) == 1 {
		r.ProcessDeregister(eh)
	}
}

// ProcessDeregisterHandler removes every handle of handler.
func (r *Reactor) ProcessDeregisterHandler(handler api.Handler) {
	for _, h := range r.registrar.Handles(handler) {
		if sel := r.registrar.Selector(h); sel != nil {
			sel.Deregister(h)
		}
		r.locks.Forget(h)
	}
	r.registrar.RemoveHandler(handler)
}

// ReportError queues an OpError event on errHandle. A nil or unknown error
// handle escalates to a critical error.
func (r *Reactor) ReportError(errHandle *api.Handle, err error, failed api.Command) {
	info := api.ErrorInfo{Err: err, Failed: failed}
	var he *api.HandlerError
	if errors.As(err, &he) {
		info.Origin = he.Handle
	}
	r.deliverError(errHandle, info)
}

func (r *Reactor) deliverError(errHandle *api.Handle, info api.ErrorInfo) {
	if errHandle == nil || !r.errors.Report(errHandle, info) {
		r.ReportCriticalError(fmt.Errorf("unroutable error: %w", info.Err))
	}
}

// ReportCriticalError logs err and notifies Config.OnCriticalError. Safe for
// concurrent use.
func (r *Reactor) ReportCriticalError(err error) {
	r.obs.CriticalError()
	r.log.Error(err, "critical error")
	if fn := r.cfg.OnCriticalError; fn != nil {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error(fmt.Errorf("%v", p), "critical error callback panicked")
			}
		}()
		fn(err)
	}
}

// reportHandlerError routes a failure of handler to its error handle,
// minting one on first use.
func (r *Reactor) reportHandlerError(handler api.Handler, readyOps api.EventMask, origin *api.Handle, err error, failed api.Command) {
	r.obs.HandlerFailed()
	if readyOps.Only(api.OpError) {
		r.ReportCriticalError(fmt.Errorf("error handler failed on %s: %w", origin, err))
		return
	}
	eh, ok := r.errors.HandleOf(handler)
	if !ok {
		if !r.registrar.ContainsHandler(handler) {
			r.ReportCriticalError(fmt.Errorf("handler without registrations failed on %s: %w", origin, err))
			return
		}
		eh = api.NewHandle()
		if regErr := r.ProcessRegister(eh, selector.ErrorSource{}, handler, api.OpError); regErr != nil {
			r.ReportCriticalError(errors.Join(err, regErr))
			return
		}
	}
	r.deliverError(eh, api.ErrorInfo{Err: err, Origin: origin, Failed: failed})
}

func (r *Reactor) selectorFor(source any) api.SpecificSelector {
	for _, sel := range r.selectors {
		if sel.Accepts(source) {
			return sel
		}
	}
	return nil
}
